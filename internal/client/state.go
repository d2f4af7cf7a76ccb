package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/shopspring/decimal"
)

type View int

const (
	ViewLoggedOut View = iota
	ViewLoggedIn
)

type FormMode int

const (
	FormClosed FormMode = iota
	FormCreate
	FormEdit
)

// Form holds the raw text the user typed; it is only parsed on Submit.
type Form struct {
	Amount      string
	Description string
	Category    string
	Date        string
}

// API is the part of APIClient the dashboard drives.
type API interface {
	SetToken(token string)
	Register(ctx context.Context, email, password, displayName string) (identity.Identity, error)
	Login(ctx context.Context, email, password string) (identity.Session, error)
	ListExpenses(ctx context.Context, userID string) ([]expense.Expense, error)
	AddExpense(ctx context.Context, in expense.Input) (expense.Expense, error)
	UpdateExpense(ctx context.Context, id string, in expense.Input) (expense.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

var (
	ErrInvalidForm   = errors.New("invalid form")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrUnknownRecord = errors.New("no such expense in the list")
	ErrFormClosed    = errors.New("no form is open")
)

// State is the dashboard's finite state: which view is shown, whether the
// add/edit form is open, and the list as last seen from the API.
type State struct {
	api API
	log *slog.Logger
	now func() time.Time

	View      View
	User      identity.Identity
	FormMode  FormMode
	Form      Form
	Expenses  []expense.Expense
	Loaded    bool
	LastError error

	editingID string
}

func NewState(api API, log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}

	return &State{api: api, log: log, now: time.Now, Expenses: []expense.Expense{}}
}

// Login signs in and loads the dashboard.
func (s *State) Login(ctx context.Context, email, password string) error {
	sess, err := s.api.Login(ctx, email, password)

	if err != nil {
		return s.fail(ctx, "login", err)
	}

	s.api.SetToken(sess.Token)
	s.User = sess.Identity
	s.View = ViewLoggedIn
	s.LastError = nil

	return s.Load(ctx)
}

// Register creates the account, then signs in with the same credentials.
func (s *State) Register(ctx context.Context, email, password, displayName string) error {
	if _, err := s.api.Register(ctx, email, password, displayName); err != nil {
		return s.fail(ctx, "register", err)
	}

	return s.Login(ctx, email, password)
}

func (s *State) Logout() {
	s.api.SetToken("")

	s.View = ViewLoggedOut
	s.User = identity.Identity{}
	s.Expenses = []expense.Expense{}
	s.Loaded = false
	s.LastError = nil
	s.resetForm()
}

// Load replaces the list with the server's copy.
func (s *State) Load(ctx context.Context) error {
	if s.View != ViewLoggedIn {
		return s.fail(ctx, "load", ErrNotLoggedIn)
	}

	items, err := s.api.ListExpenses(ctx, s.User.SubjectID)

	if err != nil {
		return s.fail(ctx, "load", err)
	}

	s.Expenses = items
	s.Loaded = true
	s.LastError = nil

	return nil
}

func (s *State) StartAdding() {
	s.FormMode = FormCreate
	s.editingID = ""
	s.Form = Form{Date: s.now().Format(time.DateOnly)}
}

func (s *State) StartEditing(id string) error {
	e, ok := s.find(id)
	if !ok {
		return s.fail(context.Background(), "edit", ErrUnknownRecord)
	}

	s.FormMode = FormEdit
	s.editingID = id
	s.Form = Form{
		Amount:      decimal.NewFromFloat(e.Amount).String(),
		Description: e.Description,
		Category:    e.Category,
		Date:        e.Date.DateString(),
	}

	return nil
}

func (s *State) Cancel() {
	s.resetForm()
}

// Submit validates the form and sends it. The list only changes when the
// API accepted the write.
func (s *State) Submit(ctx context.Context) error {
	if s.FormMode == FormClosed {
		return s.fail(ctx, "submit", ErrFormClosed)
	}

	in, err := s.Form.Input()
	if err != nil {
		return s.fail(ctx, "submit", err)
	}

	switch s.FormMode {
	case FormCreate:
		created, err := s.api.AddExpense(ctx, in)
		if err != nil {
			return s.fail(ctx, "add", err)
		}

		s.Expenses = append(s.Expenses, created)

	case FormEdit:
		updated, err := s.api.UpdateExpense(ctx, s.editingID, in)
		if err != nil {
			return s.fail(ctx, "update", err)
		}

		for i := range s.Expenses {
			if s.Expenses[i].ID == updated.ID {
				s.Expenses[i] = updated
			}
		}
	}

	s.LastError = nil
	s.resetForm()

	return nil
}

// Delete asks confirm first; a "no" is not an error and changes nothing.
func (s *State) Delete(ctx context.Context, id string, confirm func(expense.Expense) bool) error {
	e, ok := s.find(id)
	if !ok {
		return s.fail(ctx, "delete", ErrUnknownRecord)
	}

	if confirm != nil && !confirm(e) {
		return nil
	}

	if err := s.api.DeleteExpense(ctx, id); err != nil {
		return s.fail(ctx, "delete", err)
	}

	kept := s.Expenses[:0]
	for _, item := range s.Expenses {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	s.Expenses = kept
	s.LastError = nil

	return nil
}

func (s *State) Total() decimal.Decimal {
	return expense.Total(s.Expenses)
}

func (s *State) Count() int {
	return len(s.Expenses)
}

// Input checks the form the way the dashboard does before sending it.
func (f Form) Input() (expense.Input, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(f.Amount))
	if err != nil {
		return expense.Input{}, fmt.Errorf("%w: amount must be a number", ErrInvalidForm)
	}

	description := strings.TrimSpace(f.Description)
	if description == "" {
		return expense.Input{}, fmt.Errorf("%w: description is required", ErrInvalidForm)
	}

	if !expense.Category(f.Category).IsValid() {
		return expense.Input{}, fmt.Errorf("%w: unknown category %q", ErrInvalidForm, f.Category)
	}

	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Date)); err != nil {
		return expense.Input{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidForm)
	}

	return expense.Input{
		Amount:      &amount,
		Description: description,
		Category:    f.Category,
		Date:        strings.TrimSpace(f.Date),
	}, nil
}

func (s *State) find(id string) (expense.Expense, bool) {
	for _, e := range s.Expenses {
		if e.ID == id {
			return e, true
		}
	}

	return expense.Expense{}, false
}

func (s *State) resetForm() {
	s.FormMode = FormClosed
	s.editingID = ""
	s.Form = Form{}
}

func (s *State) fail(ctx context.Context, op string, err error) error {
	s.LastError = err
	s.log.WarnContext(ctx, "client_action_failed", "op", op, "err", err)

	return err
}
