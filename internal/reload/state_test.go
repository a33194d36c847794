package reload

import (
	"errors"
	"testing"
)

func TestState_BeginEnd(t *testing.T) {
	s := NewState()
	if s.InProgress() {
		t.Fatal("new state must be idle")
	}

	s.Begin()
	if !s.InProgress() {
		t.Error("expected in progress after Begin")
	}
	s.End(nil)
	if s.InProgress() {
		t.Error("expected idle after End")
	}

	st := s.Status()
	if st.Attempts != 1 || st.Failures != 0 || st.LastSuccess.IsZero() {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestState_RecordsAndClearsError(t *testing.T) {
	s := NewState()

	s.Begin()
	s.End(errors.New("parsing config: boom"))
	st := s.Status()
	if st.Failures != 1 || st.LastError != "parsing config: boom" {
		t.Errorf("expected failure recorded, got %+v", st)
	}
	if !st.LastSuccess.IsZero() {
		t.Error("failure must not set last success")
	}

	s.Begin()
	s.End(nil)
	if st := s.Status(); st.LastError != "" || st.Attempts != 2 {
		t.Errorf("expected error cleared after success, got %+v", st)
	}
}
