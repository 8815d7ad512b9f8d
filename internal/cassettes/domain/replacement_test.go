package domain

import (
	"testing"

	"cassette_tracking_backend/platform/apperr"
)

func TestValidateReplacementHappyPath(t *testing.T) {
	if err := ValidateReplacement(StatusInRepair, true, false); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidateReplacementPreconditionOrder(t *testing.T) {
	cases := []struct {
		name       string
		status     Status
		hasRequest bool
		serialUsed bool
		wantCode   string
	}{
		{"already replaced wins over everything", StatusScrapped, false, true, apperr.CodeAlreadyReplaced},
		{"missing request before serial check", StatusInRepair, false, true, apperr.CodeNoReplacementRequest},
		{"duplicate serial", StatusInRepair, true, true, apperr.CodeDuplicateSerial},
		{"transition rule last", StatusOK, true, false, apperr.CodeInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateReplacement(tc.status, tc.hasRequest, tc.serialUsed)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperr.IsCode(err, tc.wantCode) {
				t.Errorf("code = %q, want %q", apperr.GetCode(err), tc.wantCode)
			}
		})
	}
}

func TestValidateReplacementOnlyFromRepairableStates(t *testing.T) {
	// Only IN_REPAIR has an edge to SCRAPPED, so every other live status must
	// be rejected even with a valid replacement request.
	for _, s := range All() {
		if s == StatusScrapped || s == StatusInRepair {
			continue
		}
		err := ValidateReplacement(s, true, false)
		if err == nil {
			t.Errorf("replacement from %s should fail", s)
			continue
		}
		if !apperr.IsCode(err, apperr.CodeInvalidTransition) {
			t.Errorf("replacement from %s: code = %q, want %q", s, apperr.GetCode(err), apperr.CodeInvalidTransition)
		}
	}
}
