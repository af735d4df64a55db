package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPaymentStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{from: PaymentStatusPending, to: PaymentStatusConfirmed, want: true},
		{from: PaymentStatusPending, to: PaymentStatusFailed, want: true},
		{from: PaymentStatusPending, to: PaymentStatusPending, want: false},
		{from: PaymentStatusConfirmed, to: PaymentStatusPending, want: false},
		{from: PaymentStatusConfirmed, to: PaymentStatusFailed, want: false},
		{from: PaymentStatusFailed, to: PaymentStatusConfirmed, want: false},
		{from: PaymentStatusFailed, to: PaymentStatusPending, want: false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	if PaymentStatusPending.IsTerminal() {
		t.Fatalf("expected pending to be non-terminal")
	}
	for _, s := range []PaymentStatus{PaymentStatusConfirmed, PaymentStatusFailed} {
		if !s.IsTerminal() {
			t.Fatalf("expected status %q to be terminal", s)
		}
	}
}

func TestPaymentMethodValid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentMethodPix, PaymentMethodCard, PaymentMethodBoleto} {
		if !m.Valid() {
			t.Fatalf("expected method %q to be valid", m)
		}
	}
	if PaymentMethod("paypal").Valid() {
		t.Fatalf("expected unsupported method to be invalid")
	}
}

func TestPaymentAmountFromCents(t *testing.T) {
	tests := []struct {
		cents int
		want  string
	}{
		{cents: 1000, want: "10"},
		{cents: 1999, want: "19.99"},
		{cents: 5, want: "0.05"},
		{cents: 0, want: "0"},
	}

	for _, tt := range tests {
		got := PaymentAmountFromCents(tt.cents)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("PaymentAmountFromCents(%d) = %s, want %s", tt.cents, got, tt.want)
		}
	}
}
