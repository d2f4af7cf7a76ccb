package metered

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/observability"
	"github.com/geocoder89/expensetracker/internal/repo/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpensesRepo_CountsNotFound(t *testing.T) {
	prom := observability.NewProm(prometheus.NewRegistry())
	repo := NewExpensesRepo(memory.NewExpensesRepo(), prom)
	ctx := context.Background()

	e, err := repo.Insert(ctx, expense.Record{UserID: "u1", Amount: 3, Description: "Tea", Date: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	err = repo.Delete(ctx, "missing")
	assert.ErrorIs(t, err, expense.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(prom.GatewayErrorsTotal.WithLabelValues("expenses.delete", "not_found")))
	assert.Equal(t, 0.0, testutil.ToFloat64(prom.GatewayErrorsTotal.WithLabelValues("expenses.insert", "unknown")))
}

func TestExpensesRepo_NilPromPassesThrough(t *testing.T) {
	repo := NewExpensesRepo(memory.NewExpensesRepo(), nil)

	items, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}
