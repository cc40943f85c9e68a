package fees

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
)

// Account statuses
const (
	StatusClear   = "CLEAR"
	StatusDue     = "DUE"
	StatusOverdue = "OVERDUE"
)

// Payment methods
const (
	MethodOnline = "ONLINE"
	MethodCash   = "CASH"
	MethodBank   = "BANK"
)

// Payment statuses
const (
	PaymentSuccess = "SUCCESS"
	PaymentPending = "PENDING"
	PaymentFailed  = "FAILED"
)

// Agent run statuses
const (
	RunCompleted = "COMPLETED"
	RunRunning   = "RUNNING"
	RunFailed    = "FAILED"
)

const dateLayout = "2006-01-02"

// Category is a named grouping of fee structures. It cannot be deleted while
// a Structure still references it.
type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// Structure is one billable obligation for a program/year cohort.
type Structure struct {
	ID         string          `json:"id" db:"id"`
	CategoryID string          `json:"category_id" db:"category_id"`
	Program    string          `json:"program" db:"program"`
	Year       int             `json:"year" db:"year"`
	Semester   int             `json:"semester" db:"semester"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	DueDate    time.Time       `json:"due_date" db:"due_date"` // calendar date, UTC midnight
	FinePerDay decimal.Decimal `json:"fine_per_day" db:"fine_per_day"`
	IsActive   bool            `json:"is_active" db:"is_active"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"` // UTC
}

// DueStartOfDay returns the due date at 00:00 UTC.
func (s Structure) DueStartOfDay() time.Time {
	d := s.DueDate.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// DueEndOfDay returns the last instant of the due date; an obligation only
// becomes late once this has passed.
func (s Structure) DueEndOfDay() time.Time {
	return s.DueStartOfDay().Add(24*time.Hour - time.Nanosecond)
}

// AppliesTo reports whether this structure bills the given cohort.
func (s Structure) AppliesTo(program string, year int) bool {
	return s.IsActive && s.Program == program && s.Year == year
}

// Account is a student's derived fee position. It is recomputed in place by
// the reconciliation engine and is never deleted by it.
type Account struct {
	ID           string          `json:"id" db:"id"`
	RegNo        string          `json:"reg_no" db:"reg_no"`
	StudentName  string          `json:"student_name" db:"student_name"`
	Email        null.String     `json:"email" db:"email"`
	Program      string          `json:"program" db:"program"`
	Year         int             `json:"year" db:"year"`
	TotalPayable decimal.Decimal `json:"total_payable" db:"total_payable"`
	Paid         decimal.Decimal `json:"paid" db:"paid"`
	Due          decimal.Decimal `json:"due" db:"due"`
	Status       string          `json:"status" db:"status"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"` // UTC
}

// Payment is one recorded payment attempt. Only SUCCESS payments affect an
// account's paid total.
type Payment struct {
	ID          string          `json:"id" db:"id"`
	RegNo       string          `json:"reg_no" db:"reg_no"`
	StudentName string          `json:"student_name" db:"student_name"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Method      string          `json:"method" db:"method"`
	RefNo       string          `json:"ref_no" db:"ref_no"`
	Status      string          `json:"status" db:"status"`
	PaidOn      time.Time       `json:"paid_on" db:"paid_on"` // UTC
}

// AgentRun is one immutable audit entry written by the automation runner.
type AgentRun struct {
	ID      string    `json:"id" db:"id"`
	Agent   string    `json:"agent" db:"agent"`
	Status  string    `json:"status" db:"status"`
	Title   string    `json:"title" db:"title"`
	Details string    `json:"details" db:"details"`
	RanAt   time.Time `json:"ran_at" db:"ran_at"` // UTC
}

// AgentState is the single-row daily gate for the automatic run; it is kept
// apart from the run log so the gate check stays O(1) regardless of log
// retention.
type AgentState struct {
	LastRunAt  null.Time   `json:"last_run_at" db:"last_run_at"`
	LastRunDay null.String `json:"last_run_day" db:"last_run_day"` // "2006-01-02"
}

// NewCategory contains information needed to create a new Category.
type NewCategory struct {
	Name     string `json:"name" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// UpdateCategory defines what may be modified on an existing Category.
type UpdateCategory struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

func (uc *UpdateCategory) Validate(origCat Category, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origCat.Name
	}
	return validate.Struct(uc)
}

// NewStructure contains information needed to create a new Structure.
type NewStructure struct {
	CategoryID string          `json:"category_id" validate:"required"`
	Program    string          `json:"program" validate:"required"`
	Year       int             `json:"year" validate:"required,min=1"`
	Semester   int             `json:"semester" validate:"required,min=1"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    string          `json:"due_date" validate:"required,datetime=2006-01-02"`
	FinePerDay decimal.Decimal `json:"fine_per_day"`
	IsActive   *bool           `json:"is_active"`
}

func (ns *NewStructure) Validate(validate *validator.Validate) error {
	ns.Program = core.CleanString(ns.Program)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return validateAmounts(ns.Amount, ns.FinePerDay)
}

// DueDateValue parses the validated calendar date.
func (ns NewStructure) DueDateValue() time.Time {
	d, _ := time.ParseInLocation(dateLayout, ns.DueDate, time.UTC)
	return d
}

// UpdateStructure defines what may be modified on an existing Structure.
// Amount and FinePerDay are pointers: zero is a valid configured value, so
// "unset" must be distinguishable from an explicit 0.
type UpdateStructure struct {
	CategoryID string           `json:"category_id"`
	Program    string           `json:"program"`
	Year       int              `json:"year" validate:"omitempty,min=1"`
	Semester   int              `json:"semester" validate:"omitempty,min=1"`
	Amount     *decimal.Decimal `json:"amount"`
	DueDate    string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	FinePerDay *decimal.Decimal `json:"fine_per_day"`
	IsActive   *bool            `json:"is_active"`
}

func (us *UpdateStructure) Validate(orig Structure, validate *validator.Validate) error {
	program := core.CleanString(us.Program)
	if program != "" {
		us.Program = program
	} else {
		us.Program = orig.Program
	}
	if us.CategoryID == "" {
		us.CategoryID = orig.CategoryID
	}
	if us.Year == 0 {
		us.Year = orig.Year
	}
	if us.Semester == 0 {
		us.Semester = orig.Semester
	}
	if us.DueDate == "" {
		us.DueDate = orig.DueDate.UTC().Format(dateLayout)
	}
	if us.Amount == nil {
		us.Amount = &orig.Amount
	}
	if us.FinePerDay == nil {
		us.FinePerDay = &orig.FinePerDay
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	return validateAmounts(*us.Amount, *us.FinePerDay)
}

// DueDateValue parses the validated calendar date.
func (us UpdateStructure) DueDateValue() time.Time {
	d, _ := time.ParseInLocation(dateLayout, us.DueDate, time.UTC)
	return d
}

// NewPayment contains information needed to record a payment attempt.
type NewPayment struct {
	RegNo       string          `json:"reg_no" validate:"required"`
	StudentName string          `json:"student_name" validate:"required"`
	Email       string          `json:"email" validate:"omitempty,email"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,oneof=ONLINE CASH BANK"`
	RefNo       string          `json:"ref_no" validate:"required"`
	Status      string          `json:"status" validate:"required,oneof=SUCCESS PENDING FAILED"`
	PaidOn      string          `json:"paid_on" validate:"omitempty,paidon"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.RegNo = core.CleanString(np.RegNo, true /* lower */)
	np.StudentName = core.CleanString(np.StudentName)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.RefNo = core.CleanString(np.RefNo)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if !np.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be greater than 0"})
	}
	return nil
}

// PaidOnValue resolves the payment timestamp; an empty value means "now".
func (np NewPayment) PaidOnValue(now time.Time) time.Time {
	return parseTimestamp(np.PaidOn, now)
}

// UpdatePayment defines what may be modified on an existing Payment.
type UpdatePayment struct {
	StudentName string          `json:"student_name"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"omitempty,oneof=ONLINE CASH BANK"`
	RefNo       string          `json:"ref_no"`
	Status      string          `json:"status" validate:"omitempty,oneof=SUCCESS PENDING FAILED"`
	PaidOn      string          `json:"paid_on" validate:"omitempty,paidon"`
}

func (up *UpdatePayment) Validate(orig Payment, validate *validator.Validate) error {
	name := core.CleanString(up.StudentName)
	if name != "" {
		up.StudentName = name
	} else {
		up.StudentName = orig.StudentName
	}
	refNo := core.CleanString(up.RefNo)
	if refNo != "" {
		up.RefNo = refNo
	} else {
		up.RefNo = orig.RefNo
	}
	if up.Method == "" {
		up.Method = orig.Method
	}
	if up.Status == "" {
		up.Status = orig.Status
	}
	if up.Amount.IsZero() {
		up.Amount = orig.Amount
	}
	if err := validate.Struct(up); err != nil {
		return err
	}
	if !up.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be greater than 0"})
	}
	return nil
}

// PaidOnValue resolves the edited timestamp, keeping the original when unset.
func (up UpdatePayment) PaidOnValue(orig Payment) time.Time {
	return parseTimestamp(up.PaidOn, orig.PaidOn)
}

// StructureQueryFilter narrows structure listings.
type StructureQueryFilter struct {
	Program    string `query:"program"`
	Year       int    `query:"year"`
	ActiveOnly bool   `query:"active"`
}

func (qf *StructureQueryFilter) Clean() {
	qf.Program = core.CleanString(qf.Program)
}

func (qf *StructureQueryFilter) IsEmpty() bool {
	return qf.Program == "" && qf.Year == 0 && !qf.ActiveOnly
}

// Summary is the KPI read model consumed by dashboards.
type Summary struct {
	Accounts     int             `json:"accounts"`
	Clear        int             `json:"clear"`
	Due          int             `json:"due"`
	Overdue      int             `json:"overdue"`
	TotalPayable decimal.Decimal `json:"total_payable"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalDue     decimal.Decimal `json:"total_due"`
}

func validateAmounts(amount, finePerDay decimal.Decimal) error {
	var flds []core.FieldError
	if amount.IsNegative() {
		flds = append(flds, core.FieldError{Field: "amount", Error: "must be greater than or equal to 0"})
	}
	if finePerDay.IsNegative() {
		flds = append(flds, core.FieldError{Field: "fine_per_day", Error: "must be greater than or equal to 0"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t
	}
	return fallback.UTC()
}
