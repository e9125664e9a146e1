package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Internal("x"), http.StatusInternalServerError},
		{Gone("x"), http.StatusGone},
	}
	for _, tc := range tests {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("%v: got %d want %d", tc.err.Kind, got, tc.want)
		}
	}
}

func TestGetKindAndCodeThroughWrapping(t *testing.T) {
	base := Conflict("stale").WithCode("VERSION_CONFLICT")
	wrapped := fmt.Errorf("update lead: %w", base)

	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected conflict kind through wrapping")
	}
	if GetCode(wrapped) != "VERSION_CONFLICT" {
		t.Fatalf("unexpected code %q", GetCode(wrapped))
	}
	if GetKind(fmt.Errorf("plain")) != KindUnknown {
		t.Fatalf("plain errors must be KindUnknown")
	}
}
