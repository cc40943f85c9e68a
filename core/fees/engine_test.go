package fees

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func tuitionStructure() Structure {
	return Structure{
		ID:         "s1",
		CategoryID: "c1",
		Program:    "B.Tech",
		Year:       2,
		Semester:   3,
		Amount:     dec(65000),
		DueDate:    date(2025, time.June, 20),
		FinePerDay: dec(50),
		IsActive:   true,
	}
}

func btechAccount(paid decimal.Decimal) Account {
	return Account{
		ID:          "a1",
		RegNo:       "reg2021001",
		StudentName: "Asha Verma",
		Program:     "B.Tech",
		Year:        2,
		Paid:        paid,
	}
}

func TestRecompute(t *testing.T) {
	structures := []Structure{tuitionStructure()}

	tests := []struct {
		name        string
		acct        Account
		structures  []Structure
		now         time.Time
		wantPayable decimal.Decimal
		wantPaid    decimal.Decimal
		wantDue     decimal.Decimal
		wantStatus  string
	}{
		{
			name:        "unpaid 5 days late accrues fine",
			acct:        btechAccount(dec(0)),
			structures:  structures,
			now:         date(2025, time.June, 25),
			wantPayable: dec(65250),
			wantPaid:    dec(0),
			wantDue:     dec(65250),
			wantStatus:  StatusOverdue,
		},
		{
			name:        "settled base before due date never fined",
			acct:        btechAccount(dec(65000)),
			structures:  structures,
			now:         date(2025, time.July, 15),
			wantPayable: dec(65000),
			wantPaid:    dec(65000),
			wantDue:     dec(0),
			wantStatus:  StatusClear,
		},
		{
			name:        "before due date outstanding balance is DUE",
			acct:        btechAccount(dec(15000)),
			structures:  structures,
			now:         date(2025, time.June, 10),
			wantPayable: dec(65000),
			wantPaid:    dec(15000),
			wantDue:     dec(50000),
			wantStatus:  StatusDue,
		},
		{
			name:        "due date itself is not late",
			acct:        btechAccount(dec(0)),
			structures:  structures,
			now:         time.Date(2025, time.June, 20, 15, 0, 0, 0, time.UTC),
			wantPayable: dec(65000),
			wantPaid:    dec(0),
			wantDue:     dec(65000),
			wantStatus:  StatusDue,
		},
		{
			name: "zero-fine structure still turns OVERDUE",
			acct: btechAccount(dec(0)),
			structures: []Structure{{
				ID: "s2", CategoryID: "c1", Program: "B.Tech", Year: 2,
				Amount: dec(1200), DueDate: date(2025, time.June, 1), IsActive: true,
			}},
			now:         date(2025, time.June, 25),
			wantPayable: dec(1200),
			wantPaid:    dec(0),
			wantDue:     dec(1200),
			wantStatus:  StatusOverdue,
		},
		{
			name:        "inactive and mismatched structures are ignored",
			acct:        btechAccount(dec(0)),
			structures:  append([]Structure{}, inactive(tuitionStructure()), otherCohort(tuitionStructure())),
			now:         date(2025, time.June, 25),
			wantPayable: dec(0),
			wantPaid:    dec(0),
			wantDue:     dec(0),
			wantStatus:  StatusClear,
		},
		{
			name:        "overpayment is clamped, not carried as credit",
			acct:        btechAccount(dec(70000)),
			structures:  structures,
			now:         date(2025, time.June, 10),
			wantPayable: dec(65000),
			wantPaid:    dec(65000),
			wantDue:     dec(0),
			wantStatus:  StatusClear,
		},
		{
			name:        "no structures at all",
			acct:        btechAccount(dec(500)),
			structures:  nil,
			now:         date(2025, time.June, 25),
			wantPayable: dec(0),
			wantPaid:    dec(0),
			wantDue:     dec(0),
			wantStatus:  StatusClear,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recompute(tt.acct, tt.structures, tt.now)
			if !got.TotalPayable.Equal(tt.wantPayable) {
				t.Errorf("TotalPayable = %s, want %s", got.TotalPayable, tt.wantPayable)
			}
			if !got.Paid.Equal(tt.wantPaid) {
				t.Errorf("Paid = %s, want %s", got.Paid, tt.wantPaid)
			}
			if !got.Due.Equal(tt.wantDue) {
				t.Errorf("Due = %s, want %s", got.Due, tt.wantDue)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}

			// invariants hold for every case
			if got.Paid.GreaterThan(got.TotalPayable) {
				t.Errorf("invariant broken: paid %s > totalPayable %s", got.Paid, got.TotalPayable)
			}
			wantDue := got.TotalPayable.Sub(got.Paid)
			if wantDue.IsNegative() {
				wantDue = decimal.Zero
			}
			if !got.Due.Equal(wantDue) {
				t.Errorf("invariant broken: due %s != max(0, payable-paid) %s", got.Due, wantDue)
			}
			if got.Due.IsZero() != (got.Status == StatusClear) {
				t.Errorf("invariant broken: due %s with status %s", got.Due, got.Status)
			}
		})
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	structures := []Structure{tuitionStructure()}
	now := date(2025, time.July, 3)

	first := Recompute(btechAccount(dec(20000)), structures, now)
	second := Recompute(first, structures, now)
	switch {
	case !first.TotalPayable.Equal(second.TotalPayable),
		!first.Paid.Equal(second.Paid),
		!first.Due.Equal(second.Due),
		first.Status != second.Status,
		!first.UpdatedAt.Equal(second.UpdatedAt):
		t.Errorf("recompute not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestRecomputePayableMonotonicOverTime(t *testing.T) {
	structures := []Structure{tuitionStructure()}
	acct := btechAccount(dec(10000))

	prev := decimal.Zero
	for nowd := date(2025, time.June, 18); nowd.Before(date(2025, time.August, 1)); nowd = nowd.Add(24 * time.Hour) {
		got := Recompute(acct, structures, nowd)
		if got.TotalPayable.LessThan(prev) {
			t.Fatalf("totalPayable decreased over time: %s -> %s at %s", prev, got.TotalPayable, nowd)
		}
		prev = got.TotalPayable
	}
}

func TestRecomputeFineGatedOnBaseDue(t *testing.T) {
	structures := []Structure{tuitionStructure()}

	// base settled: no fine regardless of how overdue the structure is
	for _, nowd := range []time.Time{
		date(2025, time.June, 21),
		date(2025, time.July, 20),
		date(2026, time.June, 20),
	} {
		got := Recompute(btechAccount(dec(65000)), structures, nowd)
		if !got.TotalPayable.Equal(dec(65000)) {
			t.Errorf("fine accrued on settled base at %s: totalPayable = %s", nowd, got.TotalPayable)
		}
		if got.Status != StatusClear {
			t.Errorf("Status = %s at %s, want CLEAR", got.Status, nowd)
		}
	}
}

func inactive(s Structure) Structure {
	s.ID += "-inactive"
	s.IsActive = false
	return s
}

func otherCohort(s Structure) Structure {
	s.ID += "-other"
	s.Year++
	return s
}
