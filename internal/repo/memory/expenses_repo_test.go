package memory

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ExpensesRepoSuite struct {
	suite.Suite
	repo *ExpensesRepo
	ctx  context.Context
}

func (s *ExpensesRepoSuite) SetupTest() {
	s.repo = NewExpensesRepo()
	s.ctx = context.Background()
}

func record(owner string, amount float64) expense.Record {
	return expense.Record{
		UserID:      owner,
		Amount:      amount,
		Description: "Coffee",
		Category:    "food",
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *ExpensesRepoSuite) TestInsertAssignsUniqueIDs() {
	seen := map[string]bool{}

	for i := 0; i < 20; i++ {
		e, err := s.repo.Insert(s.ctx, record("u1", float64(i)))
		require.NoError(s.T(), err)
		require.NotNil(s.T(), e.CreatedAt)
		assert.Nil(s.T(), e.UpdatedAt)
		assert.False(s.T(), seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func (s *ExpensesRepoSuite) TestListByOwnerOnlyReturnsOwnRecords() {
	_, _ = s.repo.Insert(s.ctx, record("u1", 1))
	_, _ = s.repo.Insert(s.ctx, record("u2", 2))
	_, _ = s.repo.Insert(s.ctx, record("u1", 3))

	items, err := s.repo.ListByOwner(s.ctx, "u1")
	require.NoError(s.T(), err)
	require.Len(s.T(), items, 2)

	for _, e := range items {
		assert.Equal(s.T(), "u1", e.UserID)
	}

	empty, err := s.repo.ListByOwner(s.ctx, "u3")
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), empty)
	assert.Len(s.T(), empty, 0)
}

func (s *ExpensesRepoSuite) TestReplacePreservesCreatedAtAndSetsUpdatedAt() {
	created, err := s.repo.Insert(s.ctx, record("u1", 12.5))
	require.NoError(s.T(), err)

	later := time.Now().Add(time.Hour).UTC()
	s.repo.now = func() time.Time { return later }

	updated, err := s.repo.Replace(s.ctx, created.ID, record("u1", 15))
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 15.0, updated.Amount)
	assert.Equal(s.T(), created.CreatedAt, updated.CreatedAt)
	require.NotNil(s.T(), updated.UpdatedAt)
	assert.Equal(s.T(), later.Unix(), updated.UpdatedAt.Seconds)

	got, err := s.repo.Get(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), updated, got)
}

func (s *ExpensesRepoSuite) TestUnknownIDs() {
	_, err := s.repo.Replace(s.ctx, "nope", record("u1", 1))
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)
	assert.ErrorIs(s.T(), s.repo.Delete(s.ctx, "nope"), expense.ErrNotFound)

	_, err = s.repo.Get(s.ctx, "nope")
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)
}

func (s *ExpensesRepoSuite) TestDeleteRemovesRecord() {
	e, err := s.repo.Insert(s.ctx, record("u1", 1))
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.repo.Delete(s.ctx, e.ID))

	items, err := s.repo.ListByOwner(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), items)

	assert.ErrorIs(s.T(), s.repo.Delete(s.ctx, e.ID), expense.ErrNotFound)
}

func TestExpensesRepoSuite(t *testing.T) {
	suite.Run(t, new(ExpensesRepoSuite))
}
