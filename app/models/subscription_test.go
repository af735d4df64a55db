package models

import "testing"

func TestSubscriptionStatusTerminalStatesAreAbsorbing(t *testing.T) {
	all := []SubscriptionStatus{
		SubscriptionStatusPending,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusExpired,
		SubscriptionStatusCancelled,
	}

	for _, terminal := range []SubscriptionStatus{SubscriptionStatusCancelled, SubscriptionStatusExpired} {
		if !terminal.IsTerminal() {
			t.Fatalf("expected %q to be terminal", terminal)
		}
		for _, next := range all {
			if terminal.CanTransitionTo(next) {
				t.Fatalf("terminal status %q must not transition to %q", terminal, next)
			}
		}
	}
}

func TestSubscriptionStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from SubscriptionStatus
		to   SubscriptionStatus
		want bool
	}{
		{from: SubscriptionStatusPending, to: SubscriptionStatusActive, want: true},
		{from: SubscriptionStatusPending, to: SubscriptionStatusCancelled, want: true},
		{from: SubscriptionStatusPending, to: SubscriptionStatusExpired, want: true},
		{from: SubscriptionStatusActive, to: SubscriptionStatusPastDue, want: true},
		{from: SubscriptionStatusActive, to: SubscriptionStatusCancelled, want: true},
		{from: SubscriptionStatusPastDue, to: SubscriptionStatusActive, want: true},
		{from: SubscriptionStatusPastDue, to: SubscriptionStatusCancelled, want: true},
		// nothing moves back to pending
		{from: SubscriptionStatusActive, to: SubscriptionStatusPending, want: false},
		{from: SubscriptionStatusPastDue, to: SubscriptionStatusPending, want: false},
		{from: SubscriptionStatusPending, to: SubscriptionStatusPending, want: false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSubscriptionStatusBlocks(t *testing.T) {
	for _, s := range []SubscriptionStatus{SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusPastDue} {
		if !s.Blocks() {
			t.Fatalf("expected status %q to block a new subscription for the same user/plan", s)
		}
	}
	for _, s := range []SubscriptionStatus{SubscriptionStatusCancelled, SubscriptionStatusExpired} {
		if s.Blocks() {
			t.Fatalf("expected terminal status %q not to block a new subscription", s)
		}
	}
}
