package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusReserved: true, StatusFailed: true, StatusCancelled: true},
	StatusReserved:  {StatusPaid: true, StatusCancelled: true},
	StatusConfirmed: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
	StatusFailed:    {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// StockCommitted reports whether inventory has already been decremented for
// an order in this status, i.e. whether cancellation needs a restock.
func (s Status) StockCommitted() bool {
	return s == StatusReserved || s == StatusConfirmed
}
