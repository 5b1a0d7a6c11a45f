package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewAndAccessors(t *testing.T) {
	err := New(CodeNotFound, "order not found")

	if err.Code() != CodeNotFound {
		t.Fatalf("code = %s, want %s", err.Code(), CodeNotFound)
	}
	if err.Message() != "order not found" {
		t.Fatalf("message = %q", err.Message())
	}
	if err.Error() != "NOT_FOUND: order not found" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependency, cause, "load order")

	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}
	if err.Unwrap() != cause {
		t.Fatal("Unwrap must return the cause")
	}
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(CodeInternal, nil, "no cause")
	if err.Unwrap() != nil {
		t.Fatal("nil cause must stay nil")
	}
	if err.Code() != CodeInternal {
		t.Fatalf("code = %s", err.Code())
	}
}

func TestAsFindsNestedTypedError(t *testing.T) {
	inner := New(CodeConflict, "coupon already used")
	wrapped := fmt.Errorf("checkout failed: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected to find the typed error")
	}
	if typed.Code() != CodeConflict {
		t.Fatalf("code = %s, want %s", typed.Code(), CodeConflict)
	}

	if As(errors.New("plain")) != nil {
		t.Fatal("plain errors must not match")
	}
	if As(nil) != nil {
		t.Fatal("nil must not match")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "shipping address is incomplete").
		WithDetails(map[string]any{"missing_fields": []string{"zip"}})

	details, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatal("details should round-trip as provided")
	}
	if _, ok := details["missing_fields"]; !ok {
		t.Fatal("missing_fields should be present")
	}
}

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeIdempotency, http.StatusConflict},
		{CodeRateLimit, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{CodeDependency, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Errorf("MetadataFor(%s).HTTPStatus = %d, want %d", tc.code, meta.HTTPStatus, tc.status)
		}
	}

	if MetadataFor(Code("NOPE")).HTTPStatus != http.StatusInternalServerError {
		t.Fatal("unknown codes fall back to internal")
	}
}

func TestDump(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(CodeDependency, cause, "load order")

	info := Dump(err)
	if info.Code != CodeDependency {
		t.Fatalf("code = %s", info.Code)
	}
	if len(info.Chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(info.Chain))
	}

	empty := Dump(nil)
	if empty.TopMessage != "" || len(empty.Chain) != 0 {
		t.Fatal("nil errors dump empty")
	}
}
