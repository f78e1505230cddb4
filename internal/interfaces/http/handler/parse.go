package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/listsync/backend/internal/domain/itemtext"
	"github.com/listsync/backend/internal/interfaces/http/dto"
)

// ParseHandler exposes the item parser for debugging entries
type ParseHandler struct {
	BaseHandler
	parser *itemtext.Parser
}

// NewParseHandler creates a ParseHandler; parser serves requests without a locale
func NewParseHandler(parser *itemtext.Parser) *ParseHandler {
	return &ParseHandler{parser: parser}
}

// Parse reads one raw entry and renders the structured result back to text
func (h *ParseHandler) Parse(c *gin.Context) {
	var req dto.ParseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	parser := h.parser
	if req.Locale != "" && req.Locale != parser.Locale() {
		parser = itemtext.NewParser(req.Locale)
	}

	result := parser.Parse(req.Text)
	h.Success(c, dto.ParseResponse{
		Result:   result,
		Locale:   parser.Locale(),
		Rendered: parser.Render(result.Name, result.Quantity, result.PerUnit),
	})
}
