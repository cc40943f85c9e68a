package fees

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

func testConfig() *core.Config {
	return &core.Config{
		Debug:    true,
		TestMode: true,
		Env:      "TEST",
		AppName:  "Campus",
		Fees: core.FeesConfig{
			AgentName:       "Finance Agent",
			RunLogRetention: 24,
			DefaultProgram:  "B.Tech",
			DefaultYear:     1,
		},
	}
}

func newTestValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func setNow(t *testing.T, now time.Time) {
	t.Helper()
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = time.Now })
}

// mailRecorder captures reminder messages instead of dispatching them.
type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

// nopLogger satisfies core.Logger for tests.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var errBoom = errors.New("boom")

// fakeRepo is an in-memory Repository for service & agent tests.
type fakeRepo struct {
	categories map[string]Category
	structures map[string]Structure
	accounts   map[string]Account // keyed by regNo
	payments   map[string]Payment
	runs       []AgentRun // oldest first
	state      AgentState
	stateSet   bool

	failAccountWrites bool
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		categories: make(map[string]Category),
		structures: make(map[string]Structure),
		accounts:   make(map[string]Account),
		payments:   make(map[string]Payment),
	}
}

func (r *fakeRepo) CreateCategory(_ context.Context, cat Category) (Category, error) {
	r.categories[cat.ID] = cat
	return cat, nil
}

func (r *fakeRepo) UpdateCategory(_ context.Context, cat Category) (Category, error) {
	if _, ok := r.categories[cat.ID]; !ok {
		return Category{}, ErrNotFound
	}
	r.categories[cat.ID] = cat
	return cat, nil
}

func (r *fakeRepo) QueryAllCategories(_ context.Context) ([]Category, error) {
	cats := make([]Category, 0, len(r.categories))
	for _, cat := range r.categories {
		cats = append(cats, cat)
	}
	return cats, nil
}

func (r *fakeRepo) GetCategoryByID(_ context.Context, id string) (Category, error) {
	if cat, ok := r.categories[id]; ok {
		return cat, nil
	}
	return Category{}, ErrNotFound
}

func (r *fakeRepo) DeleteCategory(_ context.Context, id string) error {
	delete(r.categories, id)
	return nil
}

func (r *fakeRepo) CountStructuresByCategory(_ context.Context, categoryID string) (int, error) {
	var n int
	for _, s := range r.structures {
		if s.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CreateStructure(_ context.Context, s Structure) (Structure, error) {
	r.structures[s.ID] = s
	return s, nil
}

func (r *fakeRepo) UpdateStructure(_ context.Context, s Structure) (Structure, error) {
	if _, ok := r.structures[s.ID]; !ok {
		return Structure{}, ErrNotFound
	}
	r.structures[s.ID] = s
	return s, nil
}

func (r *fakeRepo) QueryAllStructures(_ context.Context) ([]Structure, error) {
	ss := make([]Structure, 0, len(r.structures))
	for _, s := range r.structures {
		ss = append(ss, s)
	}
	return ss, nil
}

func (r *fakeRepo) GetStructureByID(_ context.Context, id string) (Structure, error) {
	if s, ok := r.structures[id]; ok {
		return s, nil
	}
	return Structure{}, ErrNotFound
}

func (r *fakeRepo) FilterStructures(_ context.Context, filter StructureQueryFilter) ([]Structure, error) {
	var ss []Structure
	for _, s := range r.structures {
		if filter.Program != "" && s.Program != filter.Program {
			continue
		}
		if filter.Year != 0 && s.Year != filter.Year {
			continue
		}
		if filter.ActiveOnly && !s.IsActive {
			continue
		}
		ss = append(ss, s)
	}
	return ss, nil
}

func (r *fakeRepo) DeleteStructure(_ context.Context, id string) error {
	delete(r.structures, id)
	return nil
}

func (r *fakeRepo) CreateAccount(_ context.Context, acct Account) (Account, error) {
	if r.failAccountWrites {
		return Account{}, errBoom
	}
	r.accounts[acct.RegNo] = acct
	return acct, nil
}

func (r *fakeRepo) UpdateAccount(_ context.Context, acct Account) (Account, error) {
	if r.failAccountWrites {
		return Account{}, errBoom
	}
	if _, ok := r.accounts[acct.RegNo]; !ok {
		return Account{}, ErrNotFound
	}
	r.accounts[acct.RegNo] = acct
	return acct, nil
}

func (r *fakeRepo) QueryAllAccounts(_ context.Context) ([]Account, error) {
	accts := make([]Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		accts = append(accts, acct)
	}
	return accts, nil
}

func (r *fakeRepo) GetAccountByRegNo(_ context.Context, regNo string) (Account, error) {
	if acct, ok := r.accounts[regNo]; ok {
		return acct, nil
	}
	return Account{}, ErrNotFound
}

func (r *fakeRepo) CreatePayment(_ context.Context, pmt Payment) (Payment, error) {
	r.payments[pmt.ID] = pmt
	return pmt, nil
}

func (r *fakeRepo) UpdatePayment(_ context.Context, pmt Payment) (Payment, error) {
	if _, ok := r.payments[pmt.ID]; !ok {
		return Payment{}, ErrNotFound
	}
	r.payments[pmt.ID] = pmt
	return pmt, nil
}

func (r *fakeRepo) QueryAllPayments(_ context.Context) ([]Payment, error) {
	pmts := make([]Payment, 0, len(r.payments))
	for _, pmt := range r.payments {
		pmts = append(pmts, pmt)
	}
	return pmts, nil
}

func (r *fakeRepo) GetPaymentByID(_ context.Context, id string) (Payment, error) {
	if pmt, ok := r.payments[id]; ok {
		return pmt, nil
	}
	return Payment{}, ErrNotFound
}

func (r *fakeRepo) FilterPaymentsByRegNo(_ context.Context, regNo string) ([]Payment, error) {
	var pmts []Payment
	for _, pmt := range r.payments {
		if pmt.RegNo == regNo {
			pmts = append(pmts, pmt)
		}
	}
	return pmts, nil
}

func (r *fakeRepo) CreateAgentRuns(_ context.Context, runs ...AgentRun) error {
	r.runs = append(r.runs, runs...)
	return nil
}

func (r *fakeRepo) RecentAgentRuns(_ context.Context, limit int) ([]AgentRun, error) {
	recent := make([]AgentRun, 0, limit)
	for i := len(r.runs) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, r.runs[i])
	}
	return recent, nil
}

func (r *fakeRepo) PruneAgentRuns(_ context.Context, keep int) error {
	if len(r.runs) > keep {
		r.runs = r.runs[len(r.runs)-keep:]
	}
	return nil
}

func (r *fakeRepo) GetAgentState(_ context.Context) (AgentState, error) {
	if !r.stateSet {
		return AgentState{}, ErrNotFound
	}
	return r.state, nil
}

func (r *fakeRepo) SaveAgentState(_ context.Context, state AgentState) error {
	r.state = state
	r.stateSet = true
	return nil
}
