package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindBadRequest, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusBadRequest},
	}

	for _, tc := range cases {
		err := New(tc.kind, "boom")
		if got := err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: status = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestWorkflowCodes(t *testing.T) {
	err := Conflict("cannot move cassette").
		WithCode(CodeInvalidTransition).
		WithDetails(map[string]string{"current": "OK", "requested": "SCRAPPED"})

	if !IsCode(err, CodeInvalidTransition) {
		t.Errorf("code = %q, want %q", GetCode(err), CodeInvalidTransition)
	}
	if err.HTTPStatus() != http.StatusConflict {
		t.Errorf("status = %d, want conflict", err.HTTPStatus())
	}
	if err.Details == nil {
		t.Error("details lost")
	}
}

func TestNotFoundCarriesCode(t *testing.T) {
	err := NotFound("cassette not found")
	if !IsCode(err, CodeNotFound) {
		t.Errorf("code = %q, want %q", GetCode(err), CodeNotFound)
	}
}

func TestGetCodeOnForeignError(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("code = %q, want empty", got)
	}
	if IsCode(nil, CodeUnavailable) {
		t.Error("nil error must not match any code")
	}
}

func TestWrapPreservesChain(t *testing.T) {
	root := errors.New("connection reset")
	err := Wrap(KindInternal, "query cassettes", root)

	if !errors.Is(err, root) {
		t.Error("wrapped error lost the root cause")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var appErr *Error
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As failed through fmt.Errorf wrapping")
	}
	if appErr.Kind != KindInternal {
		t.Errorf("kind = %d, want internal", appErr.Kind)
	}
}

func TestErrorStringIncludesOp(t *testing.T) {
	err := Conflict("duplicate serial").WithOp("cassettes.Create")
	if err.Error() != "cassettes.Create: duplicate serial" {
		t.Errorf("message = %q", err.Error())
	}
}
