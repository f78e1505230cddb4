package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// SweepRetention removes items that stayed checked for longer than the
// retention window. Checked timestamps are tracked on every sweep, deletions
// only happen while the external connection is healthy.
func (s *ListSyncService) SweepRetention(ctx context.Context) (*PassResult, error) {
	return s.runPass(ctx, telemetry.DirectionSweep, s.sweepRetention)
}

func (s *ListSyncService) sweepRetention(ctx context.Context, res *PassResult) error {
	log := logger.L(ctx)

	if s.opts.RetentionWindow <= 0 {
		res.skip(SkipRetentionOff)
		return nil
	}

	items, err := s.store.GetItems(ctx, s.binding.MessageRef)
	if err != nil {
		return fmt.Errorf("read internal list: %w", err)
	}
	if err := s.stillRunning(); err != nil {
		return err
	}

	mapping := s.currentMapping().Clone()
	now := s.now()
	present := make(map[string]struct{}, len(items))
	expired := make([]shopping.Item, 0)

	for _, item := range items {
		present[item.ID] = struct{}{}
		if !item.Checked {
			mapping.ClearChecked(item.ID)
			continue
		}
		mapping.MarkChecked(item.ID, now)
		since, _ := mapping.CheckedSince(item.ID)
		if now.Sub(since) >= s.opts.RetentionWindow {
			expired = append(expired, item)
		}
	}
	for id := range mapping.CheckedAt {
		if _, ok := present[id]; !ok {
			mapping.ClearChecked(id)
		}
	}

	if len(expired) > 0 {
		healthy := s.checkHealth(ctx)
		if err := s.stillRunning(); err != nil {
			return err
		}
		if !healthy {
			log.Debug("Retention deletions postponed, connection not healthy", zap.Int("items", len(expired)))
			expired = expired[:0]
		}
	}

	if len(expired) > 0 {
		patch := shopping.NewPatch()
		for _, item := range expired {
			patch.Delete(item.ID)
		}
		if err := s.store.ApplyPatch(ctx, s.binding.MessageRef, patch); err != nil {
			return fmt.Errorf("apply patch: %w", err)
		}

		for _, item := range expired {
			res.Deleted++
			delete(s.knownInternal, item.ID)
			delete(s.abandoned, item.ID)
			log.Info("Checked item passed retention window",
				zap.String("internal_id", item.ID),
				zap.String("name", item.Name),
			)

			externalID, mapped := mapping.ExternalFor(item.ID)
			if !mapped {
				if p, pending := mapping.PendingFor(item.ID); pending {
					s.cancelledCreates[p.ExpectedValue]++
				}
				mapping.RemoveByInternalID(item.ID)
				continue
			}
			if err := s.writeCommand(ctx, res, commandDelete, s.binding.DeleteCommand(externalID), true); err != nil {
				// the outbound pass retries deletes for mapped items that are gone internally
				mapping.ClearChecked(item.ID)
				continue
			}
			mapping.RemoveByInternalID(item.ID)
			s.deletedExternal[externalID] = struct{}{}
			delete(s.lastSeen, externalID)
			delete(s.completedWrites, externalID)
		}
	}

	s.commit(ctx, mapping)
	return s.stillRunning()
}
