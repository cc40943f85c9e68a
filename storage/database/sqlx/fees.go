package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/campus/core/fees"
)

type feesRepository struct {
	db *sqlx.DB
}

var _ fees.Repository = (*feesRepository)(nil)

func NewFeesRepository(db *sql.DB) *feesRepository {
	return &feesRepository{db: sqlx.NewDb(db, "postgres")}
}

// wrapErr maps driver-level "no rows" onto the domain sentinel.
func wrapErr(err error) error {
	if err == sql.ErrNoRows {
		return fees.ErrNotFound
	}
	return err
}

// Categories

func (repo *feesRepository) CreateCategory(ctx context.Context, cat fees.Category) (fees.Category, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO fee_category (id, name, is_active, updated_at)
		 VALUES (:id, :name, :is_active, :updated_at)`, cat)
	return cat, err
}

func (repo *feesRepository) UpdateCategory(ctx context.Context, cat fees.Category) (fees.Category, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE fee_category SET name = :name, is_active = :is_active, updated_at = :updated_at
		 WHERE id = :id`, cat)
	if err != nil {
		return fees.Category{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fees.Category{}, fees.ErrNotFound
	}
	return cat, nil
}

func (repo *feesRepository) QueryAllCategories(ctx context.Context) ([]fees.Category, error) {
	cats := make([]fees.Category, 0)
	err := repo.db.SelectContext(ctx, &cats, `SELECT * FROM fee_category ORDER BY name`)
	return cats, err
}

func (repo *feesRepository) GetCategoryByID(ctx context.Context, id string) (fees.Category, error) {
	var cat fees.Category
	err := repo.db.GetContext(ctx, &cat, `SELECT * FROM fee_category WHERE id = $1`, id)
	return cat, wrapErr(err)
}

func (repo *feesRepository) DeleteCategory(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM fee_category WHERE id = $1`, id)
	return err
}

func (repo *feesRepository) CountStructuresByCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM fee_structure WHERE category_id = $1`, categoryID)
	return n, err
}

// Structures

func (repo *feesRepository) CreateStructure(ctx context.Context, s fees.Structure) (fees.Structure, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO fee_structure (id, category_id, program, year, semester, amount, due_date, fine_per_day, is_active, updated_at)
		 VALUES (:id, :category_id, :program, :year, :semester, :amount, :due_date, :fine_per_day, :is_active, :updated_at)`, s)
	return s, err
}

func (repo *feesRepository) UpdateStructure(ctx context.Context, s fees.Structure) (fees.Structure, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE fee_structure
		 SET category_id = :category_id, program = :program, year = :year, semester = :semester,
		     amount = :amount, due_date = :due_date, fine_per_day = :fine_per_day,
		     is_active = :is_active, updated_at = :updated_at
		 WHERE id = :id`, s)
	if err != nil {
		return fees.Structure{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fees.Structure{}, fees.ErrNotFound
	}
	return s, nil
}

func (repo *feesRepository) QueryAllStructures(ctx context.Context) ([]fees.Structure, error) {
	ss := make([]fees.Structure, 0)
	err := repo.db.SelectContext(ctx, &ss, `SELECT * FROM fee_structure ORDER BY program, year, semester`)
	return ss, err
}

func (repo *feesRepository) GetStructureByID(ctx context.Context, id string) (fees.Structure, error) {
	var s fees.Structure
	err := repo.db.GetContext(ctx, &s, `SELECT * FROM fee_structure WHERE id = $1`, id)
	return s, wrapErr(err)
}

func (repo *feesRepository) FilterStructures(ctx context.Context, filter fees.StructureQueryFilter) ([]fees.Structure, error) {
	q := `SELECT * FROM fee_structure WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.Program != "" {
		args = append(args, filter.Program)
		q += fmt.Sprintf(` AND program = $%d`, len(args))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		q += fmt.Sprintf(` AND year = $%d`, len(args))
	}
	if filter.ActiveOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY program, year, semester`

	ss := make([]fees.Structure, 0)
	err := repo.db.SelectContext(ctx, &ss, q, args...)
	return ss, err
}

func (repo *feesRepository) DeleteStructure(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM fee_structure WHERE id = $1`, id)
	return err
}

// Accounts

func (repo *feesRepository) CreateAccount(ctx context.Context, acct fees.Account) (fees.Account, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO student_fee_account (id, reg_no, student_name, email, program, year, total_payable, paid, due, status, updated_at)
		 VALUES (:id, :reg_no, :student_name, :email, :program, :year, :total_payable, :paid, :due, :status, :updated_at)`, acct)
	return acct, err
}

func (repo *feesRepository) UpdateAccount(ctx context.Context, acct fees.Account) (fees.Account, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE student_fee_account
		 SET student_name = :student_name, email = :email, program = :program, year = :year,
		     total_payable = :total_payable, paid = :paid, due = :due, status = :status, updated_at = :updated_at
		 WHERE reg_no = :reg_no`, acct)
	if err != nil {
		return fees.Account{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fees.Account{}, fees.ErrNotFound
	}
	return acct, nil
}

func (repo *feesRepository) QueryAllAccounts(ctx context.Context) ([]fees.Account, error) {
	accts := make([]fees.Account, 0)
	err := repo.db.SelectContext(ctx, &accts, `SELECT * FROM student_fee_account ORDER BY reg_no`)
	return accts, err
}

func (repo *feesRepository) GetAccountByRegNo(ctx context.Context, regNo string) (fees.Account, error) {
	var acct fees.Account
	err := repo.db.GetContext(ctx, &acct, `SELECT * FROM student_fee_account WHERE reg_no = $1`, regNo)
	return acct, wrapErr(err)
}

// Payments

func (repo *feesRepository) CreatePayment(ctx context.Context, pmt fees.Payment) (fees.Payment, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO payment (id, reg_no, student_name, amount, method, ref_no, status, paid_on)
		 VALUES (:id, :reg_no, :student_name, :amount, :method, :ref_no, :status, :paid_on)`, pmt)
	return pmt, err
}

func (repo *feesRepository) UpdatePayment(ctx context.Context, pmt fees.Payment) (fees.Payment, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE payment
		 SET student_name = :student_name, amount = :amount, method = :method,
		     ref_no = :ref_no, status = :status, paid_on = :paid_on
		 WHERE id = :id`, pmt)
	if err != nil {
		return fees.Payment{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fees.Payment{}, fees.ErrNotFound
	}
	return pmt, nil
}

func (repo *feesRepository) QueryAllPayments(ctx context.Context) ([]fees.Payment, error) {
	pmts := make([]fees.Payment, 0)
	err := repo.db.SelectContext(ctx, &pmts, `SELECT * FROM payment ORDER BY paid_on DESC`)
	return pmts, err
}

func (repo *feesRepository) GetPaymentByID(ctx context.Context, id string) (fees.Payment, error) {
	var pmt fees.Payment
	err := repo.db.GetContext(ctx, &pmt, `SELECT * FROM payment WHERE id = $1`, id)
	return pmt, wrapErr(err)
}

func (repo *feesRepository) FilterPaymentsByRegNo(ctx context.Context, regNo string) ([]fees.Payment, error) {
	pmts := make([]fees.Payment, 0)
	err := repo.db.SelectContext(ctx, &pmts,
		`SELECT * FROM payment WHERE reg_no = $1 ORDER BY paid_on DESC`, regNo)
	return pmts, err
}

// Agent runs & state

const insertAgentRunQuery = `INSERT INTO agent_run (id, agent, status, title, details, ran_at)
	 VALUES (:id, :agent, :status, :title, :details, :ran_at)`

func (repo *feesRepository) CreateAgentRuns(ctx context.Context, runs ...fees.AgentRun) error {
	// one insert per run; the named-query binder only takes structs
	for _, run := range runs {
		if _, err := repo.db.NamedExecContext(ctx, insertAgentRunQuery, run); err != nil {
			return err
		}
	}
	return nil
}

func (repo *feesRepository) RecentAgentRuns(ctx context.Context, limit int) ([]fees.AgentRun, error) {
	runs := make([]fees.AgentRun, 0, limit)
	err := repo.db.SelectContext(ctx, &runs,
		`SELECT id, agent, status, title, details, ran_at FROM agent_run ORDER BY seq DESC LIMIT $1`, limit)
	return runs, err
}

func (repo *feesRepository) PruneAgentRuns(ctx context.Context, keep int) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM agent_run
		 WHERE seq NOT IN (SELECT seq FROM agent_run ORDER BY seq DESC LIMIT $1)`, keep)
	return err
}

func (repo *feesRepository) GetAgentState(ctx context.Context) (fees.AgentState, error) {
	var state fees.AgentState
	err := repo.db.GetContext(ctx, &state, `SELECT last_run_at, last_run_day FROM agent_state WHERE id`)
	return state, wrapErr(err)
}

func (repo *feesRepository) SaveAgentState(ctx context.Context, state fees.AgentState) error {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO agent_state (id, last_run_at, last_run_day)
		 VALUES (TRUE, :last_run_at, :last_run_day)
		 ON CONFLICT (id) DO UPDATE SET last_run_at = EXCLUDED.last_run_at, last_run_day = EXCLUDED.last_run_day`, state)
	return err
}
