package models

import "time"

// BlobModel stores one named JSON document
type BlobModel struct {
	Key       string    `gorm:"column:blob_key;type:varchar(255);primaryKey"`
	Data      []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BlobModel) TableName() string {
	return "list_sync_blobs"
}
