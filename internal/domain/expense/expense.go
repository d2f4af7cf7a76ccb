package expense

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Amount      float64    `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Date        Timestamp  `json:"date"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// Record is the mutable part of an expense, what callers hand to the store.
type Record struct {
	UserID      string
	Amount      float64
	Description string
	Category    string
	Date        time.Time
}

var (
	ErrNotFound         = errors.New("expense not found")
	ErrStoreUnavailable = errors.New("expense store unavailable")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Input is the body accepted by both create and replace.
// userId is optional, the owner always comes from the verified token.
type Input struct {
	UserID      string           `json:"userId"`
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Description string           `json:"description" binding:"required"`
	Category    string           `json:"category"`
	Date        string           `json:"date" binding:"required,expensedate"`
}

// NewRecord coerces a bound Input into a store record owned by owner.
func NewRecord(owner string, in Input) (Record, error) {
	date, err := ParseDate(in.Date)

	if err != nil {
		return Record{}, err
	}

	var amount float64
	if in.Amount != nil {
		amount, _ = in.Amount.Float64()
	}

	// out of float64 range; such a value could never be encoded back to JSON
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return Record{}, ErrInvalidAmount
	}

	return Record{
		UserID:      owner,
		Amount:      amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        date,
	}, nil
}

// FromRecord builds the stored form of a record under id.
func FromRecord(id string, rec Record) Expense {
	return Expense{
		ID:          id,
		UserID:      rec.UserID,
		Amount:      rec.Amount,
		Description: rec.Description,
		Category:    rec.Category,
		Date:        NewTimestamp(rec.Date),
	}
}

// Total sums amounts exactly, so 0.1+0.2 stays 0.3.
func Total(items []Expense) decimal.Decimal {
	sum := decimal.Zero

	for _, e := range items {
		sum = sum.Add(decimal.NewFromFloat(e.Amount))
	}

	return sum
}
