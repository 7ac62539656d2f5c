package payment

import (
	"errors"
	"testing"

	"github.com/GustheTrader/Build-flow/internal/domain"
)

func TestStatusForEvent(t *testing.T) {
	tests := []struct {
		event string
		want  Status
		ok    bool
	}{
		{"payment_intent.succeeded", StatusCompleted, true},
		{"payment_intent.processing", StatusProcessing, true},
		{"payment_intent.payment_failed", StatusFailed, true},
		{"payment_intent.canceled", StatusCancelled, true},
		{"charge.refunded", StatusRefunded, true},
		{"customer.created", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			got, ok := StatusForEvent(tt.event)
			if got != tt.want || ok != tt.ok {
				t.Errorf("StatusForEvent(%q) = %q,%v want %q,%v", tt.event, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestValidateCreateRequest(t *testing.T) {
	valid := CreateRequest{ProjectID: "p1", Amount: 250, Method: MethodCheck, PaymentDate: "2026-02-14"}
	if err := ValidateCreateRequest(&valid); err != nil {
		t.Fatalf("valid: %v", err)
	}

	bad := []CreateRequest{
		{Amount: 1, Method: MethodCash, PaymentDate: "2026-02-14"},
		{ProjectID: "p1", Amount: -5, Method: MethodCash, PaymentDate: "2026-02-14"},
		{ProjectID: "p1", Amount: 5, Method: "barter", PaymentDate: "2026-02-14"},
		{ProjectID: "p1", Amount: 5, Method: MethodCash},
	}
	for i := range bad {
		if err := ValidateCreateRequest(&bad[i]); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}
