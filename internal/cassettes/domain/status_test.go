package domain

import (
	"testing"

	"cassette_tracking_backend/platform/apperr"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusOK, StatusBad, true},
		{StatusOK, StatusInTransitToRC, true},
		{StatusBad, StatusInTransitToRC, true},
		{StatusBad, StatusOK, true},
		{StatusInTransitToRC, StatusInRepair, true},
		{StatusInRepair, StatusReadyForPickup, true},
		{StatusInRepair, StatusScrapped, true},
		{StatusReadyForPickup, StatusInTransitToPengelola, true},
		{StatusInTransitToPengelola, StatusOK, true},

		// Skipping intermediate states is not allowed.
		{StatusOK, StatusInRepair, false},
		{StatusOK, StatusScrapped, false},
		{StatusBad, StatusInRepair, false},
		{StatusInTransitToRC, StatusReadyForPickup, false},
		{StatusInRepair, StatusOK, false},
		{StatusReadyForPickup, StatusOK, false},
		{StatusInTransitToPengelola, StatusBad, false},

		// Backward moves.
		{StatusInTransitToRC, StatusOK, false},
		{StatusInRepair, StatusInTransitToRC, false},

		// Terminal state has no exits.
		{StatusScrapped, StatusOK, false},
		{StatusScrapped, StatusInRepair, false},
		{StatusScrapped, StatusScrapped, false},

		// Self transitions.
		{StatusOK, StatusOK, false},
		{StatusInRepair, StatusInRepair, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateTransitionRejectsWithCode(t *testing.T) {
	err := ValidateTransition(StatusOK, StatusScrapped)
	if err == nil {
		t.Fatal("expected error for OK -> SCRAPPED")
	}
	if !apperr.IsCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("code = %q, want %q", apperr.GetCode(err), apperr.CodeInvalidTransition)
	}
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestValidateTransitionAllows(t *testing.T) {
	if err := ValidateTransition(StatusInRepair, StatusScrapped); err != nil {
		t.Fatalf("IN_REPAIR -> SCRAPPED: %v", err)
	}
	if err := ValidateTransition(StatusInTransitToPengelola, StatusOK); err != nil {
		t.Fatalf("IN_TRANSIT_TO_PENGELOLA -> OK: %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range All() {
		got, err := ParseStatus(string(s))
		if err != nil {
			t.Fatalf("ParseStatus(%s): %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%s) = %s", s, got)
		}
	}

	if _, err := ParseStatus("BROKEN"); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Error("expected error for empty status")
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusScrapped) {
		t.Error("SCRAPPED should be terminal")
	}
	for _, s := range All() {
		if s == StatusScrapped {
			continue
		}
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTargetsFromScrappedIsEmpty(t *testing.T) {
	if targets := TargetsFrom(StatusScrapped); len(targets) != 0 {
		t.Errorf("TargetsFrom(SCRAPPED) = %v, want none", targets)
	}
}
