package scheduling

import "testing"

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(DefaultTopics(), 0)
	defer store.Close()

	created := store.Create()
	if created.ID == "" {
		t.Fatal("expected a session id")
	}
	if created.Step != StepSelectDate {
		t.Fatalf("expected new session at date step, got %s", created.Step)
	}

	got, ok := store.Get(created.ID)
	if !ok || got.ID != created.ID {
		t.Fatalf("expected stored session back, got ok=%v", ok)
	}

	if _, ok := store.Get("missing"); ok {
		t.Fatal("unknown session id must not resolve")
	}

	store.Delete(created.ID)
	if _, ok := store.Get(created.ID); ok {
		t.Fatal("deleted session must not resolve")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	store := NewSessionStore(DefaultTopics(), 0)
	defer store.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := store.Create()
		if seen[s.ID] {
			t.Fatalf("duplicate session id %s", s.ID)
		}
		seen[s.ID] = true
	}
}
