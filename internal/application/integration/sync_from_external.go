package integration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/itemtext"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// SyncFromExternal applies the external snapshot to the internal list.
//
// The internal list owns item content: for items that already exist only the
// external completed flag is taken over. Unknown external items are parsed and
// created internally. Removals are held back by the empty-snapshot guard.
func (s *ListSyncService) SyncFromExternal(ctx context.Context) (*PassResult, error) {
	return s.runPass(ctx, telemetry.DirectionFromExternal, s.syncFromExternal)
}

func (s *ListSyncService) syncFromExternal(ctx context.Context, res *PassResult) error {
	log := logger.L(ctx)

	healthy := s.checkHealth(ctx)
	if err := s.stillRunning(); err != nil {
		return err
	}
	if !healthy {
		res.skip(SkipConnectionDown)
		return nil
	}

	raw, err := s.transport.ReadSnapshot(ctx, s.binding.SnapshotID)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := s.stillRunning(); err != nil {
		return err
	}

	externalItems, err := integration.ParseSnapshot(raw)
	if err != nil {
		return err
	}
	fingerprint := integration.Fingerprint(raw)
	if fingerprint == s.lastFingerprint {
		log.Debug("External snapshot unchanged", zap.Int("items", len(externalItems)))
	}

	mapping := s.currentMapping().Clone()

	if len(externalItems) == 0 && mapping.ConfirmedCount() > 0 {
		s.emptyStreak++
		if s.emptyStreak < s.opts.EmptySnapshotThreshold {
			s.metrics.RecordEmptyGuard(ctx, s.binding.MessageRef)
			log.Warn("Empty external snapshot held back",
				zap.Int("streak", s.emptyStreak),
				zap.Int("threshold", s.opts.EmptySnapshotThreshold),
				zap.Int("mapped_items", mapping.ConfirmedCount()),
			)
			res.skip(SkipEmptyGuard)
			return nil
		}
		log.Warn("Empty external snapshot confirmed, removing mapped items",
			zap.Int("streak", s.emptyStreak),
			zap.Int("mapped_items", mapping.ConfirmedCount()),
		)
	} else if len(externalItems) > 0 {
		s.emptyStreak = 0
	}

	items, err := s.store.GetItems(ctx, s.binding.MessageRef)
	if err != nil {
		return fmt.Errorf("read internal list: %w", err)
	}
	if err := s.stillRunning(); err != nil {
		return err
	}
	internalByID := shopping.IndexByID(items)

	now := s.now()
	patch := shopping.NewPatch()

	current := make(map[string]struct{}, len(externalItems))
	for _, ext := range externalItems {
		current[ext.ID] = struct{}{}
	}
	for id := range s.deletedExternal {
		if _, ok := current[id]; !ok {
			delete(s.deletedExternal, id)
		}
	}

	// external deletions
	for _, externalID := range mapping.MappedExternalIDs() {
		if _, ok := current[externalID]; ok {
			continue
		}
		internalID, _ := mapping.RemoveByExternalID(externalID)
		delete(s.completedWrites, externalID)
		if _, exists := internalByID[internalID]; exists {
			patch.Delete(internalID)
			res.Deleted++
			log.Info("External item removed, deleting internal item",
				zap.String("external_id", externalID),
				zap.String("internal_id", internalID),
			)
		}
	}

	adopted := make(map[string]bool)
	created := make(map[string]bool)
	checked := make(map[string]itemChange)
	for _, ext := range externalItems {
		internalID, mapped := mapping.InternalFor(ext.ID)
		if !mapped {
			if id, ok := mapping.AdoptPendingCreate(ext.Value, ext.ID); ok {
				internalID, mapped = id, true
				adopted[ext.ID] = true
				res.Adopted++
				delete(s.abandoned, id)
				log.Debug("Pending create confirmed",
					zap.String("external_id", ext.ID),
					zap.String("internal_id", id),
				)
			} else if id, ok := s.adoptAbandoned(mapping, ext, internalByID); ok {
				internalID, mapped = id, true
				adopted[ext.ID] = true
				res.Adopted++
				log.Info("Late external create matched to its internal item",
					zap.String("external_id", ext.ID),
					zap.String("internal_id", id),
				)
			}
		}

		if !mapped {
			if s.rejectUnmapped(ctx, res, ext) {
				continue
			}
			parsed := s.parser.Parse(ext.Value)
			if parsed.Name == "" {
				log.Debug("Ignoring external item without text", zap.String("external_id", ext.ID))
				continue
			}
			internalID = s.newID()
			if err := mapping.Upsert(internalID, ext.ID); err != nil {
				return err
			}
			created[internalID] = true
			patch.Set(shopping.Item{
				ID:       internalID,
				Name:     parsed.Name,
				Checked:  ext.Completed,
				Quantity: parsed.Quantity,
				PerUnit:  parsed.PerUnit,
			})
			res.Created++
			log.Info("New external item imported",
				zap.String("external_id", ext.ID),
				zap.String("internal_id", internalID),
				zap.String("pattern", parsed.Pattern),
				zap.Float64("confidence", parsed.Confidence),
			)
			continue
		}

		item, exists := internalByID[internalID]
		if !exists {
			// mapped but gone internally; the outbound pass deletes it externally
			continue
		}
		if s.acceptCompleted(ext, item, adopted[ext.ID], now) {
			want := ext.Completed
			checked[internalID] = func(item *shopping.Item) bool {
				if item.Checked == want {
					return false
				}
				item.Checked = want
				return true
			}
			log.Debug("Completed flag taken from external list",
				zap.String("external_id", ext.ID),
				zap.String("internal_id", internalID),
				zap.Bool("checked", ext.Completed),
			)
		}
	}

	s.agePendingCreates(ctx, res, mapping)

	if err := s.stillRunning(); err != nil {
		return err
	}
	updated, err := s.mergeFresh(ctx, patch, checked)
	if err != nil {
		return err
	}
	res.Updated += updated
	if err := s.stillRunning(); err != nil {
		return err
	}
	if !patch.IsEmpty() {
		if err := s.store.ApplyPatch(ctx, s.binding.MessageRef, patch); err != nil {
			return fmt.Errorf("apply patch: %w", err)
		}
	}

	s.commit(ctx, mapping)
	s.lastSeen = make(map[string]integration.ExternalItem, len(externalItems))
	for _, ext := range externalItems {
		s.lastSeen[ext.ID] = ext
	}
	s.lastFingerprint = fingerprint
	if len(externalItems) == 0 {
		s.emptyStreak = 0
	}
	for id := range created {
		s.knownInternal[id] = struct{}{}
	}
	s.scheduleCategorize()
	return nil
}

// rejectUnmapped handles external items that must not be imported. It
// reports whether the item was dealt with.
func (s *ListSyncService) rejectUnmapped(ctx context.Context, res *PassResult, ext integration.ExternalItem) bool {
	log := logger.L(ctx)

	// our delete command has not reached the external list yet
	if _, ok := s.deletedExternal[ext.ID]; ok {
		log.Debug("Ignoring external item awaiting deletion", zap.String("external_id", ext.ID))
		return true
	}

	if itemtext.IsProvisional(ext.Value) {
		log.Info("Deleting provisional external item",
			zap.String("external_id", ext.ID),
			zap.String("value", ext.Value),
		)
		_ = s.writeCommand(ctx, res, commandDelete, s.binding.DeleteCommand(ext.ID), true)
		return true
	}

	// a create that was still in flight when its internal item was deleted
	if n := s.cancelledCreates[ext.Value]; n > 0 {
		if n == 1 {
			delete(s.cancelledCreates, ext.Value)
		} else {
			s.cancelledCreates[ext.Value] = n - 1
		}
		log.Info("Deleting external item of a cancelled create",
			zap.String("external_id", ext.ID),
			zap.String("value", ext.Value),
		)
		_ = s.writeCommand(ctx, res, commandDelete, s.binding.DeleteCommand(ext.ID), true)
		return true
	}
	return false
}

// adoptAbandoned maps an external item to an internal item whose create was
// given up on but has since been applied by the external list. The internal
// item must still exist and be neither mapped nor pending.
func (s *ListSyncService) adoptAbandoned(mapping *integration.ListMapping, ext integration.ExternalItem, internalByID map[string]shopping.Item) (string, bool) {
	ids := make([]string, 0, len(s.abandoned))
	for id, value := range s.abandoned {
		if value == ext.Value {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, exists := internalByID[id]; !exists {
			delete(s.abandoned, id)
			continue
		}
		if _, mapped := mapping.ExternalFor(id); mapped {
			continue
		}
		if _, pending := mapping.PendingFor(id); pending {
			continue
		}
		if err := mapping.Upsert(id, ext.ID); err != nil {
			continue
		}
		delete(s.abandoned, id)
		return id, true
	}
	return "", false
}

// acceptCompleted decides whether an external completed flag overrides the
// internal checked state. The flag is taken when it changed since the last
// snapshot, or on the first sighting of an id that was not just adopted, and
// only if it is not the echo of our own recent write.
func (s *ListSyncService) acceptCompleted(ext integration.ExternalItem, item shopping.Item, adopted bool, now time.Time) bool {
	if ext.Completed == item.Checked {
		return false
	}
	if prev, seen := s.lastSeen[ext.ID]; seen {
		if prev.Completed == ext.Completed {
			return false
		}
	} else if adopted {
		return false
	}
	if at, ok := s.completedWrites[ext.ID]; ok && now.Sub(at) < s.opts.EchoWindow {
		return false
	}
	return true
}

// agePendingCreates counts a miss for every pending create that was not
// adopted in this pass. After MaxPendingMisses the create is issued again
// while tries remain; otherwise the entry is given up.
func (s *ListSyncService) agePendingCreates(ctx context.Context, res *PassResult, mapping *integration.ListMapping) {
	log := logger.L(ctx)

	for _, entry := range mapping.PendingCreates() {
		p, _ := mapping.PendingFor(entry.InternalID)
		p.Misses++
		if p.Misses < s.opts.MaxPendingMisses {
			continue
		}
		if p.Tries < s.opts.MaxCreateTries {
			p.Tries++
			p.Misses = 0
			res.Retried++
			log.Info("Re-issuing external create",
				zap.String("internal_id", entry.InternalID),
				zap.String("value", p.ExpectedValue),
				zap.Int("tries", p.Tries),
			)
			_ = s.writeCommand(ctx, res, commandCreate, s.binding.CreateCommand(), p.ExpectedValue)
			continue
		}
		mapping.RemovePending(entry.InternalID)
		s.abandoned[entry.InternalID] = p.ExpectedValue
		res.Expired++
		log.Warn("Giving up on external create",
			zap.String("internal_id", entry.InternalID),
			zap.String("value", p.ExpectedValue),
			zap.Int("tries", p.Tries),
		)
	}
}
