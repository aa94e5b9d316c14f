package orders

import "fmt"

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:           {StatusShipped: true},
	StatusShipped:        {StatusDelivered: true},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// ParseStatus accepts only the known status names.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

type ledgerEffect int

const (
	effectNone ledgerEffect = iota
	effectCommit
	effectRelease
)

// Transition is a named edge of the order lifecycle. Only the package-level values below
// exist, so callers can't request an arbitrary status write.
type Transition struct {
	name   string
	from   Status
	to     Status
	effect ledgerEffect
	event  string
}

var (
	ConfirmPayment = Transition{name: "confirm_payment", from: StatusPendingPayment, to: StatusPaid, effect: effectCommit, event: EventOrderPaid}
	CancelExpired  = Transition{name: "cancel_expired", from: StatusPendingPayment, to: StatusCancelled, effect: effectRelease, event: EventOrderCancelled}
	Ship           = Transition{name: "ship", from: StatusPaid, to: StatusShipped, event: EventOrderShipped}
	Deliver        = Transition{name: "deliver", from: StatusShipped, to: StatusDelivered, event: EventOrderDelivered}
)

func (t Transition) Name() string { return t.name }
func (t Transition) From() Status { return t.from }
func (t Transition) To() Status   { return t.to }

// ShipmentTransition maps an administrative target status onto its transition.
func ShipmentTransition(target Status) (Transition, error) {
	switch target {
	case StatusShipped:
		return Ship, nil
	case StatusDelivered:
		return Deliver, nil
	default:
		return Transition{}, fmt.Errorf("%w: %q is not a shipment status", ErrInvalidStatus, target)
	}
}
