package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Recompute derives an account's payable/paid/due/status from the structures
// billing its program/year cohort, as of `now`. It is pure: callers inject the
// clock and persist the result themselves.
//
// Fines are gated on an outstanding base balance, so a student who settled the
// base amount is never fined merely because a due date lapsed before the
// payment was recorded. Overdue status is driven by due dates alone, so
// zero-fine obligations still surface as OVERDUE.
func Recompute(acct Account, structures []Structure, now time.Time) Account {
	now = now.UTC()

	var relevant []Structure
	for _, s := range structures {
		if s.AppliesTo(acct.Program, acct.Year) {
			relevant = append(relevant, s)
		}
	}

	var baseTotal decimal.Decimal
	for _, s := range relevant {
		baseTotal = baseTotal.Add(s.Amount)
	}

	// overpayments are not carried as credit
	paid := acct.Paid
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	if paid.GreaterThan(baseTotal) {
		paid = baseTotal
	}
	baseDue := baseTotal.Sub(paid)

	var overdue bool
	var fine decimal.Decimal
	for _, s := range relevant {
		if !s.DueEndOfDay().Before(now) {
			continue
		}
		overdue = true
		if baseDue.IsPositive() && s.FinePerDay.IsPositive() {
			if late := daysLate(s, now); late > 0 {
				fine = fine.Add(s.FinePerDay.Mul(decimal.NewFromInt(late)))
			}
		}
	}

	totalPayable := baseTotal.Add(fine)
	due := totalPayable.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}

	status := StatusClear
	if due.IsPositive() {
		if overdue {
			status = StatusOverdue
		} else {
			status = StatusDue
		}
	}

	acct.TotalPayable = totalPayable
	acct.Paid = paid
	acct.Due = due
	acct.Status = status
	acct.UpdatedAt = now
	return acct
}

// daysLate counts whole calendar days elapsed since the structure's due date,
// floored at 0. The day right after the due date already counts as one.
func daysLate(s Structure, now time.Time) int64 {
	late := int64(now.Sub(s.DueStartOfDay()) / day)
	if late < 0 {
		return 0
	}
	return late
}
