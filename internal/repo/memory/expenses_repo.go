package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/google/uuid"
)

type ExpensesRepo struct {
	mu    sync.RWMutex
	items map[string]expense.Expense
	// insertion order, ListByOwner walks it so tests get a stable result
	order []string
	now   func() time.Time
}

func NewExpensesRepo() *ExpensesRepo {
	return &ExpensesRepo{
		items: make(map[string]expense.Expense),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *ExpensesRepo) Insert(_ context.Context, rec expense.Record) (expense.Expense, error) {
	e := expense.FromRecord(uuid.NewString(), rec)
	e.CreatedAt = expense.NewTimestampPtr(r.now())

	r.mu.Lock()
	r.items[e.ID] = e
	r.order = append(r.order, e.ID)
	r.mu.Unlock()

	return e, nil
}

func (r *ExpensesRepo) ListByOwner(_ context.Context, userID string) ([]expense.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]expense.Expense, 0)

	for _, id := range r.order {
		e, ok := r.items[id]

		if ok && e.UserID == userID {
			out = append(out, e)
		}
	}

	return out, nil
}

func (r *ExpensesRepo) Get(_ context.Context, id string) (expense.Expense, error) {
	r.mu.RLock()
	e, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return expense.Expense{}, expense.ErrNotFound
	}

	return e, nil
}

func (r *ExpensesRepo) Replace(_ context.Context, id string, rec expense.Record) (expense.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]

	if !ok {
		return expense.Expense{}, expense.ErrNotFound
	}

	e := expense.FromRecord(id, rec)
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = expense.NewTimestampPtr(r.now())

	r.items[id] = e

	return e, nil
}

func (r *ExpensesRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return expense.ErrNotFound
	}

	delete(r.items, id)

	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

func (r *ExpensesRepo) Ping(context.Context) error {
	return nil
}
