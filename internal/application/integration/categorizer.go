package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// Categorize assigns categories to internal items that have none.
//
// Learned categories are applied first; the classifier is only asked about the
// remaining names, in batches. Low-confidence or unknown answers fall back to
// the last configured category. A failing classifier leaves items as they are.
func (s *ListSyncService) Categorize(ctx context.Context) (*PassResult, error) {
	return s.runPass(ctx, telemetry.DirectionCategorize, s.categorize)
}

func (s *ListSyncService) categorize(ctx context.Context, res *PassResult) error {
	log := logger.L(ctx)

	if len(s.opts.Categories) == 0 {
		res.skip(SkipNoCategories)
		return nil
	}

	memory := shopping.NewCategoryMemory()
	if s.categories != nil {
		loaded, err := s.categories.Load(ctx, s.binding.MessageRef)
		if err != nil {
			return fmt.Errorf("load category memory: %w", err)
		}
		if loaded != nil {
			memory = loaded
		}
	}
	if err := s.stillRunning(); err != nil {
		return err
	}
	memoryChanged := memory.Forget(s.opts.Categories) > 0

	items, err := s.store.GetItems(ctx, s.binding.MessageRef)
	if err != nil {
		return fmt.Errorf("read internal list: %w", err)
	}
	if err := s.stillRunning(); err != nil {
		return err
	}

	configured := make(map[string]bool, len(s.opts.Categories))
	for _, c := range s.opts.Categories {
		configured[c] = true
	}

	assigned := make(map[string]itemChange)
	assign := func(id, category string) {
		assigned[id] = func(item *shopping.Item) bool {
			if item.Category != "" {
				return false
			}
			item.Category = category
			return true
		}
	}
	unknown := make([]shopping.Item, 0)
	for _, item := range items {
		if item.Category != "" {
			if configured[item.Category] && memory.Learn(item.Name, item.Category) {
				memoryChanged = true
			}
			continue
		}
		if category, ok := memory.Lookup(item.Name); ok {
			assign(item.ID, category)
			continue
		}
		unknown = append(unknown, item)
	}

	if len(unknown) > 0 && s.classifier != nil {
		for start := 0; start < len(unknown); start += s.opts.ClassifierBatchSize {
			end := min(start+s.opts.ClassifierBatchSize, len(unknown))
			batch := unknown[start:end]

			answers, err := s.classify(ctx, batch)
			if err != nil {
				log.Info("Classifier unavailable, categorization skipped",
					zap.Int("items", len(unknown)-start),
					zap.Error(err),
				)
				break
			}
			if err := s.stillRunning(); err != nil {
				return err
			}

			for _, item := range batch {
				answer, ok := answers[shopping.CategoryKey(item.Name)]
				category := s.opts.FallbackCategory()
				if ok && configured[answer.Category] && answer.Confidence >= s.opts.ConfidenceThreshold {
					category = answer.Category
					if memory.Learn(item.Name, category) {
						memoryChanged = true
					}
				}
				assign(item.ID, category)
			}
		}
	}

	if err := s.stillRunning(); err != nil {
		return err
	}
	patch := shopping.NewPatch()
	updated, err := s.mergeFresh(ctx, patch, assigned)
	if err != nil {
		return err
	}
	res.Updated += updated
	if !patch.IsEmpty() {
		if err := s.store.ApplyPatch(ctx, s.binding.MessageRef, patch); err != nil {
			return fmt.Errorf("apply patch: %w", err)
		}
	}

	if memoryChanged && s.categories != nil {
		if err := s.categories.Save(ctx, s.binding.MessageRef, memory); err != nil {
			log.Warn("Failed to persist category memory", zap.Error(err))
		}
	}
	return nil
}

// classify asks the classifier about one batch and indexes the answers by
// normalized name.
func (s *ListSyncService) classify(ctx context.Context, batch []shopping.Item) (map[string]shopping.Classification, error) {
	names := make([]string, len(batch))
	for i, item := range batch {
		names[i] = item.Name
	}
	answers, err := s.classifier.Classify(ctx, names, s.opts.Categories)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shopping.ErrClassifierFailed, err)
	}
	byKey := make(map[string]shopping.Classification, len(answers))
	for _, a := range answers {
		key := shopping.CategoryKey(a.Name)
		if _, dup := byKey[key]; !dup {
			byKey[key] = a
		}
	}
	return byKey, nil
}
