package negotiation

// TransactionState is the requester-side lifecycle of one buy broadcast.
type TransactionState string

const (
	TransactionCollecting TransactionState = "collecting"
	TransactionSelecting  TransactionState = "selecting"
	TransactionDone       TransactionState = "done"
	TransactionFailed     TransactionState = "failed"
)

func (s TransactionState) String() string {
	return string(s)
}

func (s TransactionState) IsValid() bool {
	switch s {
	case TransactionCollecting, TransactionSelecting, TransactionDone, TransactionFailed:
		return true
	default:
		return false
	}
}

func (s TransactionState) IsTerminal() bool {
	return s == TransactionDone || s == TransactionFailed
}

// ReservationState is the responder-side lifecycle of locked stock.
type ReservationState string

const (
	ReservationLocked    ReservationState = "locked"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationReleased  ReservationState = "released"
)

func (s ReservationState) String() string {
	return string(s)
}

func (s ReservationState) IsValid() bool {
	switch s {
	case ReservationLocked, ReservationConfirmed, ReservationReleased:
		return true
	default:
		return false
	}
}

func (s ReservationState) IsTerminal() bool {
	return s == ReservationConfirmed || s == ReservationReleased
}

// ReasonInsufficientStock is the machine-readable reason a responder sends
// when its available stock cannot cover the requested quantity.
const ReasonInsufficientStock = "insufficient_stock"
