package sheets

import (
	"context"

	"billtracker/internal/core"
)

// LedgerWriter mirrors bill instances into an external ledger, one row
// per instance keyed by instance id.
type LedgerWriter interface {
	// Upsert writes the row for v, replacing an existing row with the same id.
	Upsert(ctx context.Context, v core.InstanceView) error
	// Delete removes the row for instanceID. Missing rows are not an error.
	Delete(ctx context.Context, instanceID string) error
}

// Header names the ledger columns, in order.
var Header = []string{"ID", "Profile", "Bill", "Period", "Due Date", "Amount", "Paid", "Description"}

// Row renders v in Header order. The amount is a plain decimal so the
// sheet parses it as a number.
func Row(v core.InstanceView) []any {
	paid := "no"
	if v.IsPaid {
		paid = "yes"
	}
	return []any{
		v.ID,
		v.ProfileName,
		v.BillName,
		v.Period,
		v.DueDate,
		v.Amount.String(),
		paid,
		v.Description,
	}
}
