package realtime

import "testing"

func TestStore_Create_Get(t *testing.T) {
	s := NewStore[string]()
	s.Create("s1", "state1")
	e, ok := s.Get("s1")
	if !ok {
		t.Fatal("Get returned false for existing session")
	}
	if e.ID != "s1" {
		t.Errorf("session ID %q, want s1", e.ID)
	}
	if e.State != "state1" {
		t.Errorf("session State %q, want state1", e.State)
	}

	_, ok = s.Get("nonexistent")
	if ok {
		t.Error("Get should return false for missing ID")
	}
}

func TestStore_Delete(t *testing.T) {
	s := NewStore[string]()
	e := s.Create("s1", "x")
	ch := e.Hub().Subscribe()

	if !s.Delete("s1") {
		t.Fatal("Delete returned false for existing session")
	}
	if _, open := <-ch; open {
		t.Error("subscriber channel should be closed after Delete")
	}
	if s.Len() != 0 {
		t.Errorf("Len %d, want 0", s.Len())
	}
	if s.Delete("s1") {
		t.Error("second Delete should return false")
	}
}

func TestStore_IDs(t *testing.T) {
	s := NewStore[int]()
	s.Create("a", 1)
	s.Create("b", 2)
	ids := s.IDs()
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("ids %v, want a and b", ids)
	}
}
