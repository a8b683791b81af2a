package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"whisperkey/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i, id := range []string{"a", "b", "c"} {
		start := base.Add(time.Duration(i) * time.Minute)
		err := s.Record(ctx, Entry{
			ID: id, Started: start, Ended: start.Add(3 * time.Second),
			Outcome: "inserted", Audio: 2500 * time.Millisecond, Text: "text " + id,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("Recent = %+v", got)
	}
	if got[0].Audio != 2500*time.Millisecond || got[0].Text != "text c" {
		t.Errorf("entry = %+v", got[0])
	}
	if d := got[0].Started.Sub(base.Add(2 * time.Minute)); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("started drifted by %s", d)
	}
}

func TestObserveRecordsOnlyFinalTransitions(t *testing.T) {
	s := openTestStore(t)
	at := time.Unix(1700000000, 0)

	s.Observe(session.Transition{SessionID: "x", From: session.Idle, To: session.Recording, Started: at, At: at})
	s.Observe(session.Transition{SessionID: "x", From: session.Recording, To: session.Processing, Started: at, At: at})
	s.Observe(session.Transition{
		SessionID: "x", From: session.Failed, To: session.Idle, Outcome: session.OutcomeFailed,
		Reason:  &session.TranscriptionError{Err: errors.New("boom")},
		Started: at, At: at.Add(time.Second),
	})

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	e := got[0]
	if e.Outcome != "failed" || e.Stage != "transcription" || e.Reason != "transcription: boom" {
		t.Errorf("entry = %+v", e)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), Entry{ID: "keep", Started: time.Now(), Ended: time.Now(), Outcome: "too_short"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Recent(context.Background(), 5)
	if err != nil || len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("Recent after reopen = %+v, %v", got, err)
	}
}
