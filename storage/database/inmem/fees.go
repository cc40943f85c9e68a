package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core/fees"
)

type feesRepository struct {
	db *feesTables
}

func NewFeesRepository(db *DB) fees.Repository {
	return &feesRepository{db: db.fees}
}

// Categories

func (repo *feesRepository) CreateCategory(_ context.Context, cat fees.Category) (fees.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *feesRepository) UpdateCategory(_ context.Context, cat fees.Category) (fees.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.categories[cat.ID]; !ok {
		return fees.Category{}, fees.ErrNotFound
	}
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *feesRepository) QueryAllCategories(_ context.Context) ([]fees.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cats := make([]fees.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		cats = append(cats, *cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *feesRepository) GetCategoryByID(_ context.Context, id string) (fees.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return fees.Category{}, fees.ErrNotFound
}

func (repo *feesRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.categories, id)
	return nil
}

func (repo *feesRepository) CountStructuresByCategory(_ context.Context, categoryID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, s := range repo.db.structures {
		if s.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// Structures

func (repo *feesRepository) CreateStructure(_ context.Context, s fees.Structure) (fees.Structure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.structures[s.ID] = &s
	return s, nil
}

func (repo *feesRepository) UpdateStructure(_ context.Context, s fees.Structure) (fees.Structure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.structures[s.ID]; !ok {
		return fees.Structure{}, fees.ErrNotFound
	}
	repo.db.structures[s.ID] = &s
	return s, nil
}

func (repo *feesRepository) queryStructures() []fees.Structure {
	ss := make([]fees.Structure, 0, len(repo.db.structures))
	for _, s := range repo.db.structures {
		ss = append(ss, *s)
	}
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Program != ss[j].Program {
			return ss[i].Program < ss[j].Program
		}
		if ss[i].Year != ss[j].Year {
			return ss[i].Year < ss[j].Year
		}
		return ss[i].Semester < ss[j].Semester
	})
	return ss
}

func (repo *feesRepository) QueryAllStructures(_ context.Context) ([]fees.Structure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryStructures(), nil
}

func (repo *feesRepository) GetStructureByID(_ context.Context, id string) (fees.Structure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if s, ok := repo.db.structures[id]; ok {
		return *s, nil
	}
	return fees.Structure{}, fees.ErrNotFound
}

func (repo *feesRepository) FilterStructures(_ context.Context, filter fees.StructureQueryFilter) ([]fees.Structure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ss := make([]fees.Structure, 0)
	for _, s := range repo.queryStructures() {
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

func (repo *feesRepository) DeleteStructure(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.structures, id)
	return nil
}

// Accounts

func (repo *feesRepository) CreateAccount(_ context.Context, acct fees.Account) (fees.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.accounts[acct.RegNo] = &acct
	return acct, nil
}

func (repo *feesRepository) UpdateAccount(_ context.Context, acct fees.Account) (fees.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.accounts[acct.RegNo]; !ok {
		return fees.Account{}, fees.ErrNotFound
	}
	repo.db.accounts[acct.RegNo] = &acct
	return acct, nil
}

func (repo *feesRepository) QueryAllAccounts(_ context.Context) ([]fees.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	accts := make([]fees.Account, 0, len(repo.db.accounts))
	for _, acct := range repo.db.accounts {
		accts = append(accts, *acct)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].RegNo < accts[j].RegNo })
	return accts, nil
}

func (repo *feesRepository) GetAccountByRegNo(_ context.Context, regNo string) (fees.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if acct, ok := repo.db.accounts[regNo]; ok {
		return *acct, nil
	}
	return fees.Account{}, fees.ErrNotFound
}

// Payments

func (repo *feesRepository) CreatePayment(_ context.Context, pmt fees.Payment) (fees.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.payments[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *feesRepository) UpdatePayment(_ context.Context, pmt fees.Payment) (fees.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.payments[pmt.ID]; !ok {
		return fees.Payment{}, fees.ErrNotFound
	}
	repo.db.payments[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *feesRepository) queryPayments() []fees.Payment {
	pmts := make([]fees.Payment, 0, len(repo.db.payments))
	for _, pmt := range repo.db.payments {
		pmts = append(pmts, *pmt)
	}
	sort.Slice(pmts, func(i, j int) bool { return pmts[i].PaidOn.After(pmts[j].PaidOn) })
	return pmts
}

func (repo *feesRepository) QueryAllPayments(_ context.Context) ([]fees.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryPayments(), nil
}

func (repo *feesRepository) GetPaymentByID(_ context.Context, id string) (fees.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if pmt, ok := repo.db.payments[id]; ok {
		return *pmt, nil
	}
	return fees.Payment{}, fees.ErrNotFound
}

func (repo *feesRepository) FilterPaymentsByRegNo(_ context.Context, regNo string) ([]fees.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	pmts := make([]fees.Payment, 0)
	for _, pmt := range repo.queryPayments() {
		if pmt.RegNo == regNo {
			pmts = append(pmts, pmt)
		}
	}
	return pmts, nil
}

// Agent runs & state

func (repo *feesRepository) CreateAgentRuns(_ context.Context, runs ...fees.AgentRun) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.runs = append(repo.db.runs, runs...)
	return nil
}

func (repo *feesRepository) RecentAgentRuns(_ context.Context, limit int) ([]fees.AgentRun, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := len(repo.db.runs)
	if limit > n {
		limit = n
	}
	runs := make([]fees.AgentRun, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		runs = append(runs, repo.db.runs[i])
	}
	return runs, nil
}

func (repo *feesRepository) PruneAgentRuns(_ context.Context, keep int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if n := len(repo.db.runs); n > keep {
		repo.db.runs = append([]fees.AgentRun(nil), repo.db.runs[n-keep:]...)
	}
	return nil
}

func (repo *feesRepository) GetAgentState(_ context.Context) (fees.AgentState, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if repo.db.state == nil {
		return fees.AgentState{}, fees.ErrNotFound
	}
	return *repo.db.state, nil
}

func (repo *feesRepository) SaveAgentState(_ context.Context, state fees.AgentState) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.state = &state
	return nil
}
