package sales

// transitions is the single source of truth for sale status changes. Every
// caller consults it; no mutating operation carries its own copy.
var transitions = map[SaleStatus]map[SaleStatus]bool{
	StatusInProgress: {
		StatusShipped: true,
	},
	StatusShipped: {
		StatusDelivered:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusRescheduled: {
		StatusShipped: true,
	},
}

// CanTransition reports whether a sale may move from one status to another.
// Delivered and Cancelled are terminal.
func CanTransition(from, to SaleStatus) bool {
	return transitions[from][to]
}

// CanEdit reports whether a sale may still be mutated. A sale that is
// delivered but unpaid stays editable so the payment can be recorded; a
// cancelled sale never is.
func CanEdit(status SaleStatus, payment PaymentStatus) bool {
	if status == StatusCancelled {
		return false
	}
	return !(status == StatusDelivered && payment == PaymentPaid)
}

// EligibleForBatch reports whether a sale may join a new shipment batch.
// A sale already out with a distributor is not eligible for a second one.
func EligibleForBatch(status SaleStatus) bool {
	return status == StatusInProgress || status == StatusRescheduled
}
