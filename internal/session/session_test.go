package session

import "testing"

func TestNewSessionHasStableIDAndCorrelationID(t *testing.T) {
	s := New()
	if s.ID() == "" {
		t.Fatal("expected non-empty session id")
	}
	if s.CorrelationID() == "" {
		t.Fatal("expected non-empty correlation id")
	}
}

func TestRenewCorrelationIDChangesValue(t *testing.T) {
	s := New()
	first := s.CorrelationID()
	second := s.RenewCorrelationID()
	if first == second {
		t.Fatal("expected correlation id to change on renewal")
	}
	if s.CorrelationID() != second {
		t.Fatal("expected stored correlation id to match renewed value")
	}
}

func TestHistoryLengthAfterNTurns(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.AddTurn("q", "a")
	}
	if got := s.Len(); got != 5 {
		t.Fatalf("expected history length 5, got %d", got)
	}
}

func TestHistoryTruncatesAtReadNotAtStorage(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.AddTurn("q", "a")
	}
	if got := len(s.History(2)); got != 2 {
		t.Fatalf("expected truncated view of 2 turns, got %d", got)
	}
	if got := s.Len(); got != 5 {
		t.Fatalf("expected untruncated storage of 5 turns, got %d", got)
	}
}

func TestClearEmptiesHistory(t *testing.T) {
	s := New()
	s.AddTurn("q", "a")
	s.Clear()
	if got := s.Len(); got != 0 {
		t.Fatalf("expected 0 turns after clear, got %d", got)
	}
}
