package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"wa-catalog/internal/repo"
)

type fakeStore struct {
	messages  []repo.MessageRecord
	searches  []repo.SearchLog
	clicks    []repo.VendorClick
	events    []repo.AnalyticsEvent
	statBumps []string

	searchErr error
	eventErr  error
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg repo.MessageRecord) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) InsertSearchLog(ctx context.Context, log repo.SearchLog) error {
	if f.searchErr != nil {
		return f.searchErr
	}
	f.searches = append(f.searches, log)
	return nil
}

func (f *fakeStore) InsertVendorClick(ctx context.Context, click repo.VendorClick) error {
	f.clicks = append(f.clicks, click)
	return nil
}

func (f *fakeStore) InsertAnalyticsEvent(ctx context.Context, evt repo.AnalyticsEvent) error {
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) IncrementUserStat(ctx context.Context, phone, stat string) error {
	f.statBumps = append(f.statBumps, stat)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecordSearchWritesLogEventAndCounter(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, nil, discard(), nil)

	rec.RecordSearch(context.Background(), repo.SearchLog{
		UserPhone:    "22991234567",
		Query:        "iphone",
		Intent:       "search_product",
		ResultsCount: 3,
	})

	if len(store.searches) != 1 {
		t.Fatalf("expected 1 search log, got %d", len(store.searches))
	}
	if len(store.events) != 1 || store.events[0].EventType != "search" {
		t.Fatalf("expected one search analytics event, got %+v", store.events)
	}
	if len(store.statBumps) != 1 || store.statBumps[0] != "total_searches" {
		t.Fatalf("expected total_searches bump, got %v", store.statBumps)
	}
}

func TestRecordSearchSurvivesPartialFailure(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("db down")}
	rec := New(store, nil, discard(), nil)

	rec.RecordSearch(context.Background(), repo.SearchLog{UserPhone: "22991234567", Query: "iphone"})

	// The log insert failed but the event and counter still land.
	if len(store.events) != 1 {
		t.Fatalf("expected analytics event despite log failure, got %d", len(store.events))
	}
	if len(store.statBumps) != 1 {
		t.Fatalf("expected counter bump despite log failure, got %d", len(store.statBumps))
	}
}

func TestRecordEventDefaultsSystemIdentity(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, nil, discard(), nil)

	rec.RecordEvent(context.Background(), repo.AnalyticsEvent{EventType: "startup"})

	if store.events[0].UserPhone != "system" {
		t.Fatalf("expected system identity, got %q", store.events[0].UserPhone)
	}
}

func TestRecordVendorClickWritesClickEventAndCounter(t *testing.T) {
	store := &fakeStore{}
	rec := New(store, nil, discard(), nil)

	query := "iphone"
	rec.RecordVendorClick(context.Background(), repo.VendorClick{
		UserPhone:   "22991234567",
		VendorID:    "v1",
		SearchQuery: &query,
	})

	if len(store.clicks) != 1 {
		t.Fatalf("expected 1 click, got %d", len(store.clicks))
	}
	if len(store.events) != 1 || store.events[0].EventType != "vendor_click" {
		t.Fatalf("expected vendor_click event, got %+v", store.events)
	}
	if len(store.statBumps) != 1 || store.statBumps[0] != "total_clicks" {
		t.Fatalf("expected total_clicks bump, got %v", store.statBumps)
	}
}
