package traderr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMatchingByCode(t *testing.T) {
	err := InsufficientBalance("need %s, have %s", "4500", "1000")

	if !errors.Is(err, InsufficientBalance("")) {
		t.Fatal("errors.Is should match on code, ignoring message")
	}
	if errors.Is(err, InsufficientPosition("")) {
		t.Fatal("different codes must not match")
	}

	wrapped := fmt.Errorf("create order: %w", err)
	if CodeOf(wrapped) != CodeInsufficientBalance {
		t.Fatalf("CodeOf through wrap = %q", CodeOf(wrapped))
	}
	if !IsLimit(wrapped) {
		t.Fatal("wrapped limit error should still be a limit error")
	}
}

func TestExecutionFailedKeepsCause(t *testing.T) {
	cause := errors.New("market closed")
	err := ExecutionFailed(cause, "exchange rejected order %d", 42)

	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable through Unwrap")
	}
	if IsValidation(err) || IsLimit(err) {
		t.Fatal("execution failure is neither validation nor limit")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", InvalidQuantity("quantity must be positive"), http.StatusBadRequest},
		{"missing price", MissingPrice("limit orders require a price"), http.StatusBadRequest},
		{"daily limit", DailyLimitExceeded("limit of 50 reached"), http.StatusTooManyRequests},
		{"balance", InsufficientBalance("not enough cash"), http.StatusBadRequest},
		{"asset", AssetNotFound("DOGE"), http.StatusNotFound},
		{"state", InvalidState("only pending orders can be cancelled"), http.StatusConflict},
		{"conflict", Conflict("retries exhausted"), http.StatusServiceUnavailable},
		{"execution", ExecutionFailed(nil, "simulator unavailable"), http.StatusUnprocessableEntity},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}
