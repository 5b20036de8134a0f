// Package ledger recomputes a project's payment totals and derived status.
// It is a pure function over data: status is never stored state machinery,
// it is re-evaluated on every write, so no stuck states are possible.
package ledger

import (
	"fmt"

	"fieldquote/backend/internal/models"
)

// Summary is the reconciled view of a payment ledger.
type Summary struct {
	TotalPaid float64
	AmountDue float64
	Status    string // models.ProjectOngoing or models.ProjectCompleted
}

// OverpaymentError reports a payment that would push the ledger past the
// grand total. The caller must abort the whole transaction; a payment is
// never partially applied.
type OverpaymentError struct {
	GrandTotal float64
	Attempted  float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment would exceed grand total: %.2f paid against %.2f", e.Attempted, e.GrandTotal)
}

// Reconcile computes the total paid, amount due and derived status for the
// given grand total and payment history, optionally including one new
// payment. It fails with *OverpaymentError when the total paid would exceed
// the grand total; exact settlement is allowed.
func Reconcile(grandTotal float64, payments []models.Payment, newPayment *models.Payment) (Summary, error) {
	totalPaid := 0.0
	for _, p := range payments {
		totalPaid += p.Amount
	}
	if newPayment != nil {
		totalPaid += newPayment.Amount
	}

	if totalPaid > grandTotal {
		return Summary{}, &OverpaymentError{GrandTotal: grandTotal, Attempted: totalPaid}
	}

	s := Summary{
		TotalPaid: totalPaid,
		AmountDue: grandTotal - totalPaid,
		Status:    models.ProjectOngoing,
	}
	if s.AmountDue <= 0 {
		s.Status = models.ProjectCompleted
	}
	return s, nil
}
