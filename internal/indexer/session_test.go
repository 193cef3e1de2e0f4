package indexer

import (
	"testing"
)

func TestSessionManagerEvictsOldFinishedSessions(t *testing.T) {
	m := NewSessionManager()

	var ids []string
	for i := 0; i < maxFinishedSessions+10; i++ {
		s, err := m.Begin("/photos")
		if err != nil {
			t.Fatalf("Begin failed at %d: %v", i, err)
		}
		ids = append(ids, s.ID())
		s.finish(StatusCompleted, "")
		m.release(s)
	}

	for i, id := range ids[:10] {
		if m.Get(id) != nil {
			t.Errorf("expected session %d evicted", i)
		}
	}
	for i, id := range ids[10:] {
		if m.Get(id) == nil {
			t.Errorf("expected session %d retained", i+10)
		}
	}
}

func TestSessionManagerOneActivePerRoot(t *testing.T) {
	m := NewSessionManager()

	first, err := m.Begin("/photos")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if _, err := m.Begin("/photos"); err == nil {
		t.Error("expected second Begin for the same root to fail")
	}

	// A different root runs concurrently.
	other, err := m.Begin("/archive")
	if err != nil {
		t.Fatalf("Begin for other root failed: %v", err)
	}
	m.release(other)

	m.release(first)
	if _, err := m.Begin("/photos"); err != nil {
		t.Errorf("expected Begin after release to succeed, got %v", err)
	}
}
