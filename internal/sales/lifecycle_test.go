package sales

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to SaleStatus }{
		{StatusInProgress, StatusShipped},
		{StatusShipped, StatusDelivered},
		{StatusShipped, StatusCancelled},
		{StatusShipped, StatusRescheduled},
		{StatusRescheduled, StatusShipped},
	}
	allowedSet := make(map[[2]SaleStatus]bool)
	for _, tr := range allowed {
		allowedSet[[2]SaleStatus{tr.from, tr.to}] = true
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	all := []SaleStatus{StatusInProgress, StatusShipped, StatusDelivered, StatusRescheduled, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			if allowedSet[[2]SaleStatus{from, to}] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be forbidden", from, to)
		}
	}
}

func TestCanEdit(t *testing.T) {
	tests := []struct {
		name    string
		status  SaleStatus
		payment PaymentStatus
		want    bool
	}{
		{"in progress pending", StatusInProgress, PaymentPending, true},
		{"shipped pending", StatusShipped, PaymentPending, true},
		{"delivered unpaid stays open for payment", StatusDelivered, PaymentPending, true},
		{"delivered and paid is closed", StatusDelivered, PaymentPaid, false},
		{"cancelled never editable", StatusCancelled, PaymentPending, false},
		{"cancelled paid never editable", StatusCancelled, PaymentPaid, false},
		{"rescheduled paid", StatusRescheduled, PaymentPaid, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanEdit(tt.status, tt.payment))
		})
	}
}

func TestEligibleForBatch(t *testing.T) {
	assert.True(t, EligibleForBatch(StatusInProgress))
	assert.True(t, EligibleForBatch(StatusRescheduled))
	assert.False(t, EligibleForBatch(StatusShipped))
	assert.False(t, EligibleForBatch(StatusDelivered))
	assert.False(t, EligibleForBatch(StatusCancelled))
}
