package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/events"
	"github.com/geocoder89/expensetracker/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ExpenseStore interface {
	Insert(ctx context.Context, rec expense.Record) (expense.Expense, error)
	ListByOwner(ctx context.Context, userID string) ([]expense.Expense, error)
	Get(ctx context.Context, id string) (expense.Expense, error)
	Replace(ctx context.Context, id string, rec expense.Record) (expense.Expense, error)
	Delete(ctx context.Context, id string) error
}

type ExpensesHandler struct {
	store     ExpenseStore
	publisher events.Publisher
	log       *slog.Logger
}

func NewExpensesHandler(store ExpenseStore, publisher events.Publisher, log *slog.Logger) *ExpensesHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &ExpensesHandler{store: store, publisher: publisher, log: log}
}

func (h *ExpensesHandler) ListByOwner(ctx *gin.Context) {
	subject, ok := subjectOrAbort(ctx)
	if !ok {
		return
	}

	items, err := h.store.ListByOwner(ctx.Request.Context(), subject)

	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list_expenses_failed", "err", err)
		RespondInternal(ctx, "Could not list expenses")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *ExpensesHandler) Create(ctx *gin.Context) {
	subject, ok := subjectOrAbort(ctx)
	if !ok {
		return
	}

	rec, ok := bindRecord(ctx, subject)
	if !ok {
		return
	}

	created, err := h.store.Insert(ctx.Request.Context(), rec)

	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "create_expense_failed", "err", err)
		RespondInternal(ctx, "Could not create expense")
		return
	}

	h.publish(ctx, events.ExpenseCreated, created)

	ctx.JSON(http.StatusCreated, created)
}

func (h *ExpensesHandler) Replace(ctx *gin.Context) {
	subject, ok := subjectOrAbort(ctx)
	if !ok {
		return
	}

	rec, ok := bindRecord(ctx, subject)
	if !ok {
		return
	}

	id := ctx.Param("expenseId")

	if _, ok := h.loadOwned(ctx, id, subject); !ok {
		return
	}

	updated, err := h.store.Replace(ctx.Request.Context(), id, rec)

	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "replace_expense_failed", "expense_id", id, "err", err)
		RespondInternal(ctx, "Could not update expense")
		return
	}

	h.publish(ctx, events.ExpenseUpdated, updated)

	ctx.JSON(http.StatusOK, updated)
}

func (h *ExpensesHandler) Delete(ctx *gin.Context) {
	subject, ok := subjectOrAbort(ctx)
	if !ok {
		return
	}

	id := ctx.Param("expenseId")

	existing, ok := h.loadOwned(ctx, id, subject)
	if !ok {
		return
	}

	err := h.store.Delete(ctx.Request.Context(), id)

	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "delete_expense_failed", "expense_id", id, "err", err)
		RespondInternal(ctx, "Could not delete expense")
		return
	}

	h.publish(ctx, events.ExpenseDeleted, existing)

	ctx.JSON(http.StatusOK, gin.H{"message": "Expense deleted successfully"})
}

// loadOwned fetches id and hides records that belong to someone else behind
// the same 404 as a missing one.
func (h *ExpensesHandler) loadOwned(ctx *gin.Context, id, subject string) (expense.Expense, bool) {
	existing, err := h.store.Get(ctx.Request.Context(), id)

	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return expense.Expense{}, false
		}

		h.log.ErrorContext(ctx.Request.Context(), "get_expense_failed", "expense_id", id, "err", err)
		RespondInternal(ctx, "Could not load expense")
		return expense.Expense{}, false
	}

	if existing.UserID != subject {
		RespondNotFound(ctx, "Expense not found")
		return expense.Expense{}, false
	}

	return existing, true
}

func (h *ExpensesHandler) publish(ctx *gin.Context, t events.Type, e expense.Expense) {
	err := h.publisher.Publish(ctx.Request.Context(), events.New(t, e, requestIDFrom(ctx)))

	// the write already happened; a lost event is logged, not returned
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "publish_event_failed", "type", t, "expense_id", e.ID, "err", err)
	}
}

func bindRecord(ctx *gin.Context, subject string) (expense.Record, bool) {
	var in expense.Input

	if !BindJSON(ctx, &in) {
		return expense.Record{}, false
	}

	if in.UserID != "" && in.UserID != subject {
		RespondForbidden(ctx, "userId does not match the authenticated user")
		return expense.Record{}, false
	}

	rec, err := expense.NewRecord(subject, in)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"reason": err.Error()})
		return expense.Record{}, false
	}

	return rec, true
}

func subjectOrAbort(ctx *gin.Context) (string, bool) {
	subject, ok := middlewares.SubjectIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return "", false
	}

	return subject, true
}
