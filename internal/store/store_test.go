package store

import (
	"encoding/json"
	"os"
	"reflect"
	"testing"

	"github.com/sambabiba/shinbis-calendar/internal/model"
)

func TestLoadEmptyBlob(t *testing.T) {
	s := New(NewMemoryBlob())
	if got := s.EventsOn("2024-06-24"); len(got) != 0 {
		t.Fatalf("EventsOn on empty store = %v", got)
	}
}

func TestLoadMalformedBlobStartsEmpty(t *testing.T) {
	blob := NewMemoryBlob()
	if err := blob.Put([]byte("{not json")); err != nil {
		t.Fatal(err)
	}

	s := New(blob)
	if got := s.EventsOn("2024-06-24"); len(got) != 0 {
		t.Fatalf("malformed blob produced events: %v", got)
	}

	// The store must still be writable afterwards.
	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "recovered"})
	if got := s.EventsOn("2024-06-24"); len(got) != 1 {
		t.Fatalf("store not usable after malformed load: %v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	blob := NewMemoryBlob()
	s := New(blob)

	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "standup", StartTime: "09:00", EndTime: "09:15", Priority: model.PriorityNormal, Color: model.ColorBlue})
	s.Upsert("2024-06-24", model.Event{ID: 2, Title: "lunch", StartTime: "12:00", EndTime: "13:00", Priority: model.PriorityLow, Color: model.ColorGreen})
	s.Upsert("2024-07-01", model.Event{ID: 3, Title: "holiday", AllDay: true, Priority: model.PriorityHigh, Color: model.ColorRed})

	reloaded := New(blob)
	if !reflect.DeepEqual(reloaded.Snapshot(), s.Snapshot()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", reloaded.Snapshot(), s.Snapshot())
	}
}

func TestLoadMigratesLegacyTimeField(t *testing.T) {
	blob := NewMemoryBlob()
	legacy := map[string][]map[string]any{
		"2024-06-24": {
			{"id": 1, "title": "old-style", "time": "19:30"},
		},
		"2024-06-25": {}, // an empty list a buggy writer left behind
	}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if err := blob.Put(data); err != nil {
		t.Fatal(err)
	}

	s := New(blob)

	events := s.EventsOn("2024-06-24")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].StartTime != "19:30" {
		t.Errorf("StartTime = %q, want migrated 19:30", events[0].StartTime)
	}
	if events[0].LegacyTime != "" {
		t.Errorf("LegacyTime survived migration: %q", events[0].LegacyTime)
	}

	if _, ok := s.Snapshot()["2024-06-25"]; ok {
		t.Error("empty date key survived load")
	}
}

func TestUpsertReplacesInPlace(t *testing.T) {
	s := New(NewMemoryBlob())
	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "first"})
	s.Upsert("2024-06-24", model.Event{ID: 2, Title: "second"})
	s.Upsert("2024-06-24", model.Event{ID: 3, Title: "third"})

	s.Upsert("2024-06-24", model.Event{ID: 2, Title: "second, edited"})

	events := s.EventsOn("2024-06-24")
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Position preserved.
	if events[1].ID != 2 || events[1].Title != "second, edited" {
		t.Fatalf("middle event = %+v", events[1])
	}
	if events[0].Title != "first" || events[2].Title != "third" {
		t.Fatalf("neighbours disturbed: %+v", events)
	}
}

func TestRemoveDeletesEmptyKey(t *testing.T) {
	s := New(NewMemoryBlob())
	s.Upsert("2024-02-29", model.Event{ID: 1, Title: "leap day"})

	s.Remove("2024-02-29", 1)

	if got := s.EventsOn("2024-02-29"); len(got) != 0 {
		t.Fatalf("events remain after removal: %v", got)
	}
	if _, ok := s.Snapshot()["2024-02-29"]; ok {
		t.Fatal("date key maps to an empty list after removal")
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	blob := NewMemoryBlob()
	s := New(blob)
	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "keep me"})

	s.Remove("2024-06-24", 999)
	s.Remove("2024-01-01", 1)

	if got := s.EventsOn("2024-06-24"); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("no-op removal changed state: %v", got)
	}
}

func TestEventsOnReturnsCopy(t *testing.T) {
	s := New(NewMemoryBlob())
	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "original"})

	got := s.EventsOn("2024-06-24")
	got[0].Title = "mutated"

	if again := s.EventsOn("2024-06-24"); again[0].Title != "original" {
		t.Fatal("EventsOn exposed internal state")
	}
}

func TestLeapDayLifecycle(t *testing.T) {
	s := New(NewMemoryBlob())
	ev := model.Event{ID: 42, Title: "leap party", StartTime: "18:00", EndTime: "22:00"}

	s.Upsert("2024-02-29", ev)
	got := s.EventsOn("2024-02-29")
	if len(got) != 1 || got[0].ID != 42 {
		t.Fatalf("EventsOn = %v, want exactly the inserted event", got)
	}

	s.Remove("2024-02-29", 42)
	if got := s.EventsOn("2024-02-29"); len(got) != 0 {
		t.Fatalf("EventsOn after removal = %v, want empty", got)
	}
	if _, ok := s.Snapshot()["2024-02-29"]; ok {
		t.Fatal("key still present after removing last event")
	}
}

func TestBoltBlobRoundTrip(t *testing.T) {
	path := t.TempDir() + "/calendar.db"

	blob, err := OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}

	s := New(blob)
	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "persisted"})
	want := s.Snapshot()
	if err := blob.Close(); err != nil {
		t.Fatal(err)
	}

	blob2, err := OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer blob2.Close()

	reloaded := New(blob2)
	if !reflect.DeepEqual(reloaded.Snapshot(), want) {
		t.Fatalf("bolt round trip mismatch: %+v", reloaded.Snapshot())
	}
}

func TestBackupWritesJSON(t *testing.T) {
	s := New(NewMemoryBlob())
	s.Upsert("2024-06-24", model.Event{ID: 1, Title: "backed up"})

	path := t.TempDir() + "/backup.json"
	if err := s.Backup(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var idx model.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}
	if len(idx["2024-06-24"]) != 1 || idx["2024-06-24"][0].Title != "backed up" {
		t.Fatalf("backup content = %+v", idx)
	}
}
