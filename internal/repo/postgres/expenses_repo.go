package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExpensesRepo struct {
	pool *pgxpool.Pool
}

// constructor function

func NewExpensesRepo(pool *pgxpool.Pool) *ExpensesRepo {
	return &ExpensesRepo{
		pool: pool,
	}
}

const expenseColumns = `id, user_id, amount, description, category, date, created_at, updated_at`

func (r *ExpensesRepo) Insert(ctx context.Context, rec expense.Record) (expense.Expense, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO expenses(id, user_id, amount, description, category, date, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		id, rec.UserID, rec.Amount, rec.Description, rec.Category, rec.Date, now)

	if err != nil {
		return expense.Expense{}, unavailable("insert", err)
	}

	e := expense.FromRecord(id, rec)
	e.CreatedAt = expense.NewTimestampPtr(now)

	return e, nil
}

func (r *ExpensesRepo) ListByOwner(ctx context.Context, userID string) ([]expense.Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE user_id = $1`, userID)

	if err != nil {
		return nil, unavailable("list", err)
	}

	defer rows.Close()

	output := make([]expense.Expense, 0)

	for rows.Next() {
		e, err := scanExpense(rows)

		if err != nil {
			return nil, unavailable("list", err)
		}

		output = append(output, e)
	}

	err = rows.Err()

	if err != nil {
		return nil, unavailable("list", err)
	}

	return output, nil
}

func (r *ExpensesRepo) Get(ctx context.Context, id string) (expense.Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)

	e, err := scanExpense(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return expense.Expense{}, expense.ErrNotFound
		}
		return expense.Expense{}, unavailable("get", err)
	}

	return e, nil
}

func (r *ExpensesRepo) Replace(ctx context.Context, id string, rec expense.Record) (expense.Expense, error) {
	row := r.pool.QueryRow(
		ctx,
		`UPDATE expenses
			SET user_id = $2,
					amount = $3,
					description = $4,
					category = $5,
					date = $6,
					updated_at = NOW()
		WHERE id = $1
		RETURNING `+expenseColumns,
		id,
		rec.UserID,
		rec.Amount,
		rec.Description,
		rec.Category,
		rec.Date,
	)

	e, err := scanExpense(row)

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return expense.Expense{}, expense.ErrNotFound
		}
		return expense.Expense{}, unavailable("replace", err)
	}

	return e, nil
}

func (r *ExpensesRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)

	if err != nil {
		return unavailable("delete", err)
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return expense.ErrNotFound
	}

	return nil
}

func (r *ExpensesRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanExpense(row pgx.Row) (expense.Expense, error) {
	var (
		e         expense.Expense
		date      time.Time
		createdAt time.Time
		updatedAt *time.Time
	)

	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Description, &e.Category, &date, &createdAt, &updatedAt)

	if err != nil {
		return expense.Expense{}, err
	}

	e.Date = expense.NewTimestamp(date)
	e.CreatedAt = expense.NewTimestampPtr(createdAt)

	if updatedAt != nil {
		e.UpdatedAt = expense.NewTimestampPtr(*updatedAt)
	}

	return e, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %w", expense.ErrStoreUnavailable, op, err)
}
