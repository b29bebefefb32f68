package orders

import "testing"

func TestParseGatewayStatus(t *testing.T) {
	cases := map[string]Status{
		"PAID":       StatusPaid,
		"paid":       StatusPaid,
		"SUCCEEDED":  StatusPaid,
		"EXPIRED":    StatusExpired,
		"FAILED":     StatusFailed,
		" Canceled ": StatusCancelled,
		"PENDING":    StatusPending,
		"REFUNDED":   Status("refunded"),
		"Processing": StatusProcessing,
	}
	for raw, want := range cases {
		if got := ParseGatewayStatus(raw); got != want {
			t.Errorf("ParseGatewayStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPaid, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusCompleted, true},
		{StatusPending, StatusCompleted, true},
		{StatusPaid, StatusPending, false},
		{StatusShipped, StatusPaid, false},
		{StatusPaid, StatusPaid, false},
		{StatusPending, StatusExpired, true},
		{StatusPaid, StatusFailed, false},
		{StatusPaid, StatusExpired, false},
		{StatusShipped, StatusCancelled, false},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{Status("refunded"), StatusExpired, true},
		{StatusExpired, StatusPaid, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, Status("refunded"), true},
		{Status("refunded"), StatusPaid, true},
		{StatusFailed, Status("refunded"), false},
	}
	for _, c := range cases {
		if got := CanAdvance(c.from, c.to); got != c.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanTransitionHandoff(t *testing.T) {
	if !CanTransition(StatusPending, StatusCompleted) || !CanTransition(StatusPending, StatusCancelled) {
		t.Fatal("pending must reach completed and cancelled")
	}
	if CanTransition(StatusCompleted, StatusCancelled) || CanTransition(StatusCancelled, StatusCompleted) {
		t.Fatal("terminal handoff orders must not move")
	}
	if CanTransition(StatusPending, StatusPaid) {
		t.Fatal("handoff orders have no paid state")
	}
}
