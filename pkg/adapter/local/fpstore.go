package local

import (
	"context"
	"sort"
	"time"

	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/model"
)

// FPStore is the local file-backed adapter.FPStore implementation.
type FPStore struct {
	events *fileStore[model.FPEvent]
	// findingToEvent tracks the most recent event recorded for a finding so
	// IsFalsePositive/MarkFalsePositive can look up by findingId in O(1)
	// without re-scanning every event.
	findingToEvent *fileStore[string]
}

func newFPStore(dir string) (*FPStore, error) {
	events, err := newFileStore[model.FPEvent](dir, "fp_events")
	if err != nil {
		return nil, err
	}
	idx, err := newFileStore[string](dir, "fp_finding_index")
	if err != nil {
		return nil, err
	}
	return &FPStore{events: events, findingToEvent: idx}, nil
}

// RecordEvent is idempotent on EventID: a duplicate is a silent no-op.
func (s *FPStore) RecordEvent(ctx context.Context, event model.FPEvent) error {
	err := s.events.withLock(func() (bool, error) {
		if _, exists := s.events.data[event.EventID]; exists {
			return false, nil
		}
		s.events.data[event.EventID] = event
		return true, nil
	})
	if err != nil {
		return err
	}
	if event.FindingID != "" {
		return s.indexFinding(event.FindingID, event.EventID)
	}
	return nil
}

func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewer, ticket string) error {
	eventID, ok := s.findingToEvent.get(findingID)
	if !ok {
		return oracleerr.New(oracleerr.KindInvalidInput, "no recorded event for finding "+findingID)
	}
	return s.events.withLock(func() (bool, error) {
		ev, exists := s.events.data[eventID]
		if !exists {
			return false, oracleerr.New(oracleerr.KindInvalidInput, "no recorded event for finding "+findingID)
		}
		ev.IsFalsePositive = true
		ev.ReviewedBy = reviewer
		ev.Ticket = ticket
		s.events.data[eventID] = ev
		return true, nil
	})
}

func (s *FPStore) IsFalsePositive(ctx context.Context, findingID string) (bool, error) {
	eventID, ok := s.findingToEvent.get(findingID)
	if !ok {
		return false, nil
	}
	ev, ok := s.events.get(eventID)
	if !ok {
		return false, nil
	}
	return ev.IsFalsePositive, nil
}

// indexFinding records the findingId -> eventId mapping; called by RecordEvent
// callers (the orchestrator) right after an event referencing a finding is
// recorded, since FPEvent itself doesn't always carry a stable findingId the
// first time a synthetic event is produced.
func (s *FPStore) indexFinding(findingID, eventID string) error {
	return s.findingToEvent.withLock(func() (bool, error) {
		s.findingToEvent.data[findingID] = eventID
		return true, nil
	})
}

func (s *FPStore) eventsForRule(ruleID string) []model.FPEvent {
	all := s.events.snapshot()
	out := make([]model.FPEvent, 0, len(all))
	for _, e := range all {
		if e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	// Ordering guarantee: (ruleId, timestamp, eventId), ties break on eventId.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (model.Window, error) {
	events := s.eventsForRule(ruleID)
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return model.NewWindow(ruleID, events), nil
}

func (s *FPStore) GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (model.Window, error) {
	events := s.eventsForRule(ruleID)
	filtered := make([]model.FPEvent, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	return model.NewWindow(ruleID, filtered), nil
}
