package orders

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPendingPayment, StatusPaid}:      true,
		{StatusPendingPayment, StatusCancelled}: true,
		{StatusPaid, StatusShipped}:             true,
		{StatusShipped, StatusDelivered}:        true,
	}
	all := []Status{StatusPendingPayment, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("%s -> %s: got %v want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !StatusCancelled.Terminal() || !StatusDelivered.Terminal() {
		t.Fatalf("cancelled and delivered are terminal")
	}
	if StatusPaid.Terminal() || Status("NOPE").Terminal() {
		t.Fatalf("unexpected terminal status")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("SHIPPED"); err != nil || s != StatusShipped {
		t.Fatalf("parse SHIPPED: %v %v", s, err)
	}
	if _, err := ParseStatus("shipped"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("status names are case sensitive, got %v", err)
	}
}

func TestTransitionsMatchGraph(t *testing.T) {
	for _, tr := range []Transition{ConfirmPayment, CancelExpired, Ship, Deliver} {
		if !CanTransition(tr.From(), tr.To()) {
			t.Errorf("%s uses an edge outside the lifecycle: %s -> %s", tr.Name(), tr.From(), tr.To())
		}
	}
	if ConfirmPayment.effect != effectCommit || CancelExpired.effect != effectRelease {
		t.Fatalf("ledger effects wired wrong")
	}
	if Ship.effect != effectNone || Deliver.effect != effectNone {
		t.Fatalf("fulfilment must not touch stock")
	}
}
