package integration

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// SyncToExternal pushes the internal list to the external list. Commands are
// only written when the rendered value or the checked state differs from the
// last external snapshot.
func (s *ListSyncService) SyncToExternal(ctx context.Context) (*PassResult, error) {
	return s.runPass(ctx, telemetry.DirectionToExternal, s.syncToExternal)
}

func (s *ListSyncService) syncToExternal(ctx context.Context, res *PassResult) error {
	log := logger.L(ctx)

	healthy := s.checkHealth(ctx)
	if err := s.stillRunning(); err != nil {
		return err
	}
	if !healthy {
		res.skip(SkipConnectionDown)
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

	current := make(map[string]struct{}, len(items))
	for _, item := range items {
		current[item.ID] = struct{}{}
	}

	// internal deletions
	for _, id := range s.removedInternalIDs(mapping.KnownInternalIDs(), current) {
		delete(s.knownInternal, id)
		delete(s.abandoned, id)
		externalID, mapped := mapping.ExternalFor(id)
		if !mapped {
			if p, pending := mapping.PendingFor(id); pending {
				s.cancelledCreates[p.ExpectedValue]++
			}
			mapping.RemoveByInternalID(id)
			continue
		}
		log.Info("Internal item removed, deleting external item",
			zap.String("internal_id", id),
			zap.String("external_id", externalID),
		)
		if err := s.writeCommand(ctx, res, commandDelete, s.binding.DeleteCommand(externalID), true); err != nil {
			// keep the pair so the delete is retried by the next pass
			continue
		}
		mapping.RemoveByInternalID(id)
		res.Deleted++
		s.deletedExternal[externalID] = struct{}{}
		delete(s.lastSeen, externalID)
		delete(s.completedWrites, externalID)
	}

	for _, item := range items {
		rendered := s.parser.RenderItem(item)

		if externalID, ok := mapping.ExternalFor(item.ID); ok {
			last, seen := s.lastSeen[externalID]
			if !seen {
				// no external state known yet; the next inbound pass fills it in
				continue
			}
			if last.Value != rendered {
				if s.writeCommand(ctx, res, commandValue, s.binding.ValueCommand(externalID), rendered) == nil {
					res.Updated++
				}
				last.Value = rendered
			}
			if last.Completed != item.Checked {
				if s.writeCommand(ctx, res, commandCompleted, s.binding.CompletedCommand(externalID), item.Checked) == nil {
					res.Updated++
				}
				last.Completed = item.Checked
				s.completedWrites[externalID] = now
			}
			s.lastSeen[externalID] = last
			continue
		}

		if p, ok := mapping.PendingFor(item.ID); ok {
			if p.ExpectedValue == rendered {
				continue
			}
			if p.Tries >= s.opts.MaxCreateTries {
				log.Debug("Pending create changed but no tries left",
					zap.String("internal_id", item.ID),
					zap.String("value", rendered),
				)
				continue
			}
			if err := mapping.AddPendingCreate(item.ID, rendered); err != nil {
				return err
			}
			_ = s.writeCommand(ctx, res, commandCreate, s.binding.CreateCommand(), rendered)
			continue
		}

		if value, ok := s.abandoned[item.ID]; ok && value == rendered {
			continue
		}
		delete(s.abandoned, item.ID)

		if err := mapping.AddPendingCreate(item.ID, rendered); err != nil {
			return err
		}
		res.Created++
		log.Info("Creating external item",
			zap.String("internal_id", item.ID),
			zap.String("value", rendered),
		)
		_ = s.writeCommand(ctx, res, commandCreate, s.binding.CreateCommand(), rendered)
	}

	// commands are already out, so their bookkeeping is kept even after a stop
	s.commit(ctx, mapping)
	if err := s.stillRunning(); err != nil {
		return err
	}
	s.knownInternal = current
	s.scheduleCategorize()
	return nil
}

// removedInternalIDs returns the ids remembered from earlier passes or
// tracked by the mapping that are no longer in the internal list, sorted.
func (s *ListSyncService) removedInternalIDs(tracked []string, current map[string]struct{}) []string {
	candidates := make(map[string]struct{}, len(s.knownInternal)+len(tracked))
	for id := range s.knownInternal {
		candidates[id] = struct{}{}
	}
	for _, id := range tracked {
		candidates[id] = struct{}{}
	}
	removed := make([]string, 0)
	for id := range candidates {
		if _, ok := current[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}
