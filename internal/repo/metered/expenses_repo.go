package metered

import (
	"context"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/observability"
)

type ExpenseStore interface {
	Insert(ctx context.Context, rec expense.Record) (expense.Expense, error)
	ListByOwner(ctx context.Context, userID string) ([]expense.Expense, error)
	Get(ctx context.Context, id string) (expense.Expense, error)
	Replace(ctx context.Context, id string, rec expense.Record) (expense.Expense, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// ExpensesRepo records latency and failure class of every store call.
type ExpensesRepo struct {
	inner ExpenseStore
	prom  *observability.Prom
}

func NewExpensesRepo(inner ExpenseStore, prom *observability.Prom) *ExpensesRepo {
	return &ExpensesRepo{inner: inner, prom: prom}
}

func (r *ExpensesRepo) Insert(ctx context.Context, rec expense.Record) (e expense.Expense, err error) {
	err = r.prom.ObserveGateway("expenses.insert", func() error {
		e, err = r.inner.Insert(ctx, rec)
		return err
	})
	return
}

func (r *ExpensesRepo) ListByOwner(ctx context.Context, userID string) (out []expense.Expense, err error) {
	err = r.prom.ObserveGateway("expenses.list_by_owner", func() error {
		out, err = r.inner.ListByOwner(ctx, userID)
		return err
	})
	return
}

func (r *ExpensesRepo) Get(ctx context.Context, id string) (e expense.Expense, err error) {
	err = r.prom.ObserveGateway("expenses.get", func() error {
		e, err = r.inner.Get(ctx, id)
		return err
	})
	return
}

func (r *ExpensesRepo) Replace(ctx context.Context, id string, rec expense.Record) (e expense.Expense, err error) {
	err = r.prom.ObserveGateway("expenses.replace", func() error {
		e, err = r.inner.Replace(ctx, id, rec)
		return err
	})
	return
}

func (r *ExpensesRepo) Delete(ctx context.Context, id string) error {
	return r.prom.ObserveGateway("expenses.delete", func() error {
		return r.inner.Delete(ctx, id)
	})
}

func (r *ExpensesRepo) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}
