package gcp

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dissonance-oracle/oracle/internal/oracleerr"
	"github.com/dissonance-oracle/oracle/pkg/adapter/resiliency"
	"github.com/dissonance-oracle/oracle/pkg/model"
	"google.golang.org/api/iterator"
)

// FPStore implements adapter.FPStore on Cloud Storage: one blob per event
// at "events/<eventId>.json", plus a "findings/<findingId>.json" blob
// mapping a finding back to its event id, mirroring the local adapter's
// findingToEvent index.
type FPStore struct {
	bucket  *storage.BucketHandle
	retrier *resiliency.Retrier
}

func (s *FPStore) RecordEvent(ctx context.Context, event model.FPEvent) error {
	created, err := writeJSONIfAbsent(ctx, s.retrier, s.bucket, "events/"+event.EventID+".json", event)
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "write fp event", err)
	}
	if !created {
		return nil // duplicate eventId: idempotent no-op
	}
	if event.FindingID != "" {
		if _, err := writeJSONIfAbsent(ctx, s.retrier, s.bucket, "findings/"+event.FindingID+".json", event.EventID); err != nil {
			return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "index fp event by finding", err)
		}
	}
	return nil
}

func (s *FPStore) eventIDForFinding(ctx context.Context, findingID string) (string, bool, error) {
	var eventID string
	ok, _, err := readJSON(ctx, s.retrier, s.bucket, "findings/"+findingID+".json", &eventID)
	if err != nil {
		return "", false, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "read finding index", err)
	}
	return eventID, ok, nil
}

func (s *FPStore) MarkFalsePositive(ctx context.Context, findingID, reviewer, ticket string) error {
	eventID, ok, err := s.eventIDForFinding(ctx, findingID)
	if err != nil {
		return err
	}
	if !ok {
		return oracleerr.New(oracleerr.KindInvalidInput, "no fp event for finding: "+findingID)
	}
	var event model.FPEvent
	_, gen, err := readJSON(ctx, s.retrier, s.bucket, "events/"+eventID+".json", &event)
	if err != nil {
		return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "read fp event", err)
	}
	event.IsFalsePositive = true
	event.ReviewedBy = reviewer
	event.Ticket = ticket
	if err := writeJSONGenMatch(ctx, s.retrier, s.bucket, "events/"+eventID+".json", gen, event); err != nil {
		return oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "update fp event", err)
	}
	return nil
}

func (s *FPStore) IsFalsePositive(ctx context.Context, findingID string) (bool, error) {
	eventID, ok, err := s.eventIDForFinding(ctx, findingID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var event model.FPEvent
	found, _, err := readJSON(ctx, s.retrier, s.bucket, "events/"+eventID+".json", &event)
	if err != nil {
		return false, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "read fp event", err)
	}
	if !found {
		return false, nil
	}
	return event.IsFalsePositive, nil
}

func (s *FPStore) allEvents(ctx context.Context, ruleID string) ([]model.FPEvent, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: "events/"})
	var events []model.FPEvent
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, oracleerr.Wrap(oracleerr.KindFPStoreUnavailable, "list fp events", err)
		}
		var e model.FPEvent
		found, _, err := readJSON(ctx, s.retrier, s.bucket, attrs.Name, &e)
		if err != nil || !found {
			continue
		}
		if e.RuleID == ruleID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].EventID < events[j].EventID
	})
	return events, nil
}

func (s *FPStore) GetWindowByCount(ctx context.Context, ruleID string, n int) (model.Window, error) {
	events, err := s.allEvents(ctx, ruleID)
	if err != nil {
		return model.Window{}, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return model.NewWindow(ruleID, events), nil
}

func (s *FPStore) GetWindowBySince(ctx context.Context, ruleID string, since time.Time) (model.Window, error) {
	events, err := s.allEvents(ctx, ruleID)
	if err != nil {
		return model.Window{}, err
	}
	filtered := make([]model.FPEvent, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	return model.NewWindow(ruleID, filtered), nil
}
