package fees

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
)

var (
	// errors
	ErrNotFound           = errors.New("record not found")
	ErrCategoryReferenced = errors.New("category is still referenced by one or more fee structures")

	nowFunc = time.Now // mockable
)

// Now is the reconciliation clock; callers triggering an on-demand pass use it
// so manual and automatic runs share the same notion of "now".
func Now() time.Time { return nowFunc().UTC() }

type (
	Repository interface {
		// categories
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		QueryAllCategories(ctx context.Context) ([]Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		DeleteCategory(ctx context.Context, id string) error
		CountStructuresByCategory(ctx context.Context, categoryID string) (int, error)

		// structures
		CreateStructure(ctx context.Context, s Structure) (Structure, error)
		UpdateStructure(ctx context.Context, s Structure) (Structure, error)
		QueryAllStructures(ctx context.Context) ([]Structure, error)
		GetStructureByID(ctx context.Context, id string) (Structure, error)
		// FilterStructures applies AND operation on available StructureQueryFilter fields.
		FilterStructures(ctx context.Context, filter StructureQueryFilter) ([]Structure, error)
		DeleteStructure(ctx context.Context, id string) error

		// accounts
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		UpdateAccount(ctx context.Context, acct Account) (Account, error)
		QueryAllAccounts(ctx context.Context) ([]Account, error)
		GetAccountByRegNo(ctx context.Context, regNo string) (Account, error)

		// payments
		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		UpdatePayment(ctx context.Context, pmt Payment) (Payment, error)
		QueryAllPayments(ctx context.Context) ([]Payment, error)
		GetPaymentByID(ctx context.Context, id string) (Payment, error)
		FilterPaymentsByRegNo(ctx context.Context, regNo string) ([]Payment, error)

		// agent runs & state
		CreateAgentRuns(ctx context.Context, runs ...AgentRun) error
		// RecentAgentRuns returns up to `limit` entries, newest first.
		RecentAgentRuns(ctx context.Context, limit int) ([]AgentRun, error)
		PruneAgentRuns(ctx context.Context, keep int) error
		GetAgentState(ctx context.Context) (AgentState, error)
		SaveAgentState(ctx context.Context, state AgentState) error
	}

	Service struct {
		repo Repository
		conf *core.Config

		// account writes are serialized per regNo to preserve the paid/due
		// invariants under concurrent payments.
		mu       sync.Mutex
		regLocks map[string]*sync.Mutex
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		conf:     conf,
		regLocks: make(map[string]*sync.Mutex),
	}
}

func (svc *Service) regLock(regNo string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	lock, ok := svc.regLocks[regNo]
	if !ok {
		lock = new(sync.Mutex)
		svc.regLocks[regNo] = lock
	}
	return lock
}

// ---------------------------------------------------------------------------
// Fee Structure Catalog

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	cat := Category{
		ID:        uuid.New().String(),
		Name:      nc.Name,
		IsActive:  true,
		UpdatedAt: nowFunc().UTC(),
	}
	if nc.IsActive != nil {
		cat.IsActive = *nc.IsActive
	}
	return svc.repo.CreateCategory(ctx, cat)
}

func (svc *Service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	cat, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return Category{}, err
	}
	cat.Name = uc.Name
	if uc.IsActive != nil {
		cat.IsActive = *uc.IsActive
	}
	cat.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCategory(ctx, cat)
}

func (svc *Service) QueryCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryAllCategories(ctx)
}

func (svc *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategoryByID(ctx, id)
}

// DeleteCategory refuses to delete a category that is still referenced by a
// fee structure; there are no implicit cascading deletes.
func (svc *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCategoryByID(ctx, id); err != nil {
		return err
	}
	refs, err := svc.repo.CountStructuresByCategory(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return core.NewReferentialConflict(ErrCategoryReferenced.Error())
	}
	return svc.repo.DeleteCategory(ctx, id)
}

func (svc *Service) CreateStructure(ctx context.Context, ns NewStructure) (Structure, error) {
	if _, err := svc.repo.GetCategoryByID(ctx, ns.CategoryID); err != nil {
		if err == ErrNotFound {
			return Structure{}, core.NewValidationError(err, core.FieldError{Field: "category_id", Error: "unknown category"})
		}
		return Structure{}, err
	}
	s := Structure{
		ID:         uuid.New().String(),
		CategoryID: ns.CategoryID,
		Program:    ns.Program,
		Year:       ns.Year,
		Semester:   ns.Semester,
		Amount:     ns.Amount,
		DueDate:    ns.DueDateValue(),
		FinePerDay: ns.FinePerDay,
		IsActive:   true,
		UpdatedAt:  nowFunc().UTC(),
	}
	if ns.IsActive != nil {
		s.IsActive = *ns.IsActive
	}
	return svc.repo.CreateStructure(ctx, s)
}

func (svc *Service) UpdateStructure(ctx context.Context, id string, us UpdateStructure) (Structure, error) {
	s, err := svc.repo.GetStructureByID(ctx, id)
	if err != nil {
		return Structure{}, err
	}
	if us.CategoryID != s.CategoryID {
		if _, err := svc.repo.GetCategoryByID(ctx, us.CategoryID); err != nil {
			if err == ErrNotFound {
				return Structure{}, core.NewValidationError(err, core.FieldError{Field: "category_id", Error: "unknown category"})
			}
			return Structure{}, err
		}
	}
	s.CategoryID = us.CategoryID
	s.Program = us.Program
	s.Year = us.Year
	s.Semester = us.Semester
	s.Amount = *us.Amount
	s.DueDate = us.DueDateValue()
	s.FinePerDay = *us.FinePerDay
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
	s.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateStructure(ctx, s)
}

func (svc *Service) QueryStructures(ctx context.Context, filter StructureQueryFilter) ([]Structure, error) {
	filter.Clean()
	if filter.IsEmpty() {
		return svc.repo.QueryAllStructures(ctx)
	}
	return svc.repo.FilterStructures(ctx, filter)
}

func (svc *Service) GetStructure(ctx context.Context, id string) (Structure, error) {
	return svc.repo.GetStructureByID(ctx, id)
}

// DeleteStructure is unconditional.
func (svc *Service) DeleteStructure(ctx context.Context, id string) error {
	if _, err := svc.repo.GetStructureByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteStructure(ctx, id)
}

// ---------------------------------------------------------------------------
// Payment Processor

// RecordPayment appends the payment to the ledger regardless of status; only
// a SUCCESS payment mutates (or implicitly creates) the student's account.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Payment, *Account, error) {
	now := nowFunc().UTC()
	pmt := Payment{
		ID:          uuid.New().String(),
		RegNo:       np.RegNo,
		StudentName: np.StudentName,
		Amount:      np.Amount,
		Method:      np.Method,
		RefNo:       np.RefNo,
		Status:      np.Status,
		PaidOn:      np.PaidOnValue(now),
	}
	pmt, err := svc.repo.CreatePayment(ctx, pmt)
	if err != nil {
		return Payment{}, nil, err
	}

	if pmt.Status != PaymentSuccess {
		return pmt, nil, nil
	}

	acct, err := svc.applyToAccount(ctx, pmt.RegNo, pmt.StudentName, np.Email, pmt.Amount, now)
	if err != nil {
		return pmt, nil, err
	}
	return pmt, &acct, nil
}

// UpdatePayment edits a ledger entry and adjusts the account by the delta of
// the payment's SUCCESS contribution, so an edit never double-counts.
func (svc *Service) UpdatePayment(ctx context.Context, id string, up UpdatePayment) (Payment, *Account, error) {
	orig, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, nil, err
	}

	oldContribution := decimal.Zero
	if orig.Status == PaymentSuccess {
		oldContribution = orig.Amount
	}

	pmt := orig
	pmt.StudentName = up.StudentName
	pmt.Amount = up.Amount
	pmt.Method = up.Method
	pmt.RefNo = up.RefNo
	pmt.Status = up.Status
	pmt.PaidOn = up.PaidOnValue(orig)

	pmt, err = svc.repo.UpdatePayment(ctx, pmt)
	if err != nil {
		return Payment{}, nil, err
	}

	newContribution := decimal.Zero
	if pmt.Status == PaymentSuccess {
		newContribution = pmt.Amount
	}
	delta := newContribution.Sub(oldContribution)
	if delta.IsZero() {
		return pmt, nil, nil
	}

	acct, err := svc.applyToAccount(ctx, pmt.RegNo, pmt.StudentName, "", delta, nowFunc().UTC())
	if err != nil {
		return pmt, nil, err
	}
	return pmt, &acct, nil
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPaymentByID(ctx, id)
}

func (svc *Service) QueryPayments(ctx context.Context, regNo string) ([]Payment, error) {
	regNo = core.CleanString(regNo, true /* lower */)
	if regNo == "" {
		return svc.repo.QueryAllPayments(ctx)
	}
	return svc.repo.FilterPaymentsByRegNo(ctx, regNo)
}

// applyToAccount adds `amount` to the account's paid total and reconciles it.
// An unseen regNo gets a fresh account seeded from the payment.
func (svc *Service) applyToAccount(ctx context.Context, regNo, studentName, email string, amount decimal.Decimal, now time.Time) (Account, error) {
	lock := svc.regLock(regNo)
	lock.Lock()
	defer lock.Unlock()

	structures, err := svc.repo.QueryAllStructures(ctx)
	if err != nil {
		return Account{}, err
	}

	acct, err := svc.repo.GetAccountByRegNo(ctx, regNo)
	switch err {
	case nil:
		acct.Paid = acct.Paid.Add(amount)
		if email != "" {
			acct.Email = null.StringFrom(email)
		}
		return svc.repo.UpdateAccount(ctx, Recompute(acct, structures, now))
	case ErrNotFound:
		acct = Account{
			ID:          uuid.New().String(),
			RegNo:       regNo,
			StudentName: studentName,
			Program:     svc.conf.Fees.DefaultProgram,
			Year:        svc.conf.Fees.DefaultYear,
			Paid:        amount,
		}
		if email != "" {
			acct.Email = null.StringFrom(email)
		}
		return svc.repo.CreateAccount(ctx, Recompute(acct, structures, now))
	default:
		return Account{}, err
	}
}

// ---------------------------------------------------------------------------
// Reconciliation over the whole ledger

func (svc *Service) QueryAccounts(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryAllAccounts(ctx)
}

func (svc *Service) GetAccountByRegNo(ctx context.Context, regNo string) (Account, error) {
	return svc.repo.GetAccountByRegNo(ctx, core.CleanString(regNo, true /* lower */))
}

// RecalcAll reconciles every account as of `now` without writing audit logs.
// It returns the reconciled accounts.
func (svc *Service) RecalcAll(ctx context.Context, now time.Time) ([]Account, error) {
	structures, err := svc.repo.QueryAllStructures(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := svc.repo.QueryAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	updated := make([]Account, 0, len(accounts))
	for _, acct := range accounts {
		acct, err = svc.repo.UpdateAccount(ctx, Recompute(acct, structures, now))
		if err != nil {
			return updated, err
		}
		updated = append(updated, acct)
	}
	return updated, nil
}

// Summarize aggregates the KPI counters the dashboards read.
func (svc *Service) Summarize(ctx context.Context) (Summary, error) {
	accounts, err := svc.repo.QueryAllAccounts(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Accounts: len(accounts)}
	for _, acct := range accounts {
		switch acct.Status {
		case StatusClear:
			sum.Clear++
		case StatusDue:
			sum.Due++
		case StatusOverdue:
			sum.Overdue++
		}
		sum.TotalPayable = sum.TotalPayable.Add(acct.TotalPayable)
		sum.TotalPaid = sum.TotalPaid.Add(acct.Paid)
		sum.TotalDue = sum.TotalDue.Add(acct.Due)
	}
	return sum, nil
}

func (svc *Service) RecentAgentRuns(ctx context.Context) ([]AgentRun, error) {
	return svc.repo.RecentAgentRuns(ctx, svc.conf.Fees.RunLogRetention)
}
