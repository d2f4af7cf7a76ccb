package firestore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
)

// Firestore REST v1 wire shapes, limited to the value kinds expenses use.

type document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

type value struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
	NullValue      *string  `json:"nullValue,omitempty"`
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type structuredQuery struct {
	From  []collectionSelector `json:"from"`
	Where *filter              `json:"where,omitempty"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type filter struct {
	FieldFilter *fieldFilter `json:"fieldFilter,omitempty"`
}

type fieldFilter struct {
	Field fieldReference `json:"field"`
	Op    string         `json:"op"`
	Value value          `json:"value"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

// runQuery streams one element per matching document; an empty result is a
// single element carrying only readTime.
type runQueryResponse struct {
	Document *document `json:"document,omitempty"`
	ReadTime string    `json:"readTime,omitempty"`
}

const (
	fieldUserID      = "userId"
	fieldAmount      = "amount"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldDate        = "date"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
)

// fields a replace is allowed to touch; createdAt is left alone
var replaceMask = []string{fieldUserID, fieldAmount, fieldDescription, fieldCategory, fieldDate, fieldUpdatedAt}

func stringValue(s string) value {
	return value{StringValue: &s}
}

func doubleValue(f float64) value {
	return value{DoubleValue: &f}
}

func timestampValue(t time.Time) value {
	s := t.UTC().Format(time.RFC3339Nano)
	return value{TimestampValue: &s}
}

func recordFields(rec expense.Record) map[string]value {
	return map[string]value{
		fieldUserID:      stringValue(rec.UserID),
		fieldAmount:      doubleValue(rec.Amount),
		fieldDescription: stringValue(rec.Description),
		fieldCategory:    stringValue(rec.Category),
		fieldDate:        timestampValue(rec.Date),
	}
}

func (v value) str() string {
	if v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

func (v value) number() (float64, error) {
	switch {
	case v.DoubleValue != nil:
		return *v.DoubleValue, nil
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	default:
		return 0, nil
	}
}

func (v value) timestamp() (*expense.Timestamp, error) {
	if v.TimestampValue == nil {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)

	if err != nil {
		return nil, err
	}

	return expense.NewTimestampPtr(t), nil
}

// toExpense maps a stored document back to the API record.
func (d document) toExpense() (expense.Expense, error) {
	e := expense.Expense{
		ID:          documentID(d.Name),
		UserID:      d.Fields[fieldUserID].str(),
		Description: d.Fields[fieldDescription].str(),
		Category:    d.Fields[fieldCategory].str(),
	}

	amount, err := d.Fields[fieldAmount].number()

	if err != nil {
		return expense.Expense{}, fmt.Errorf("document %s: amount: %w", e.ID, err)
	}

	e.Amount = amount

	date, err := d.Fields[fieldDate].timestamp()

	if err != nil {
		return expense.Expense{}, fmt.Errorf("document %s: date: %w", e.ID, err)
	}

	if date != nil {
		e.Date = *date
	}

	e.CreatedAt, err = d.Fields[fieldCreatedAt].timestamp()

	if err != nil {
		return expense.Expense{}, fmt.Errorf("document %s: createdAt: %w", e.ID, err)
	}

	e.UpdatedAt, err = d.Fields[fieldUpdatedAt].timestamp()

	if err != nil {
		return expense.Expense{}, fmt.Errorf("document %s: updatedAt: %w", e.ID, err)
	}

	return e, nil
}

func documentID(name string) string {
	idx := strings.LastIndex(name, "/")

	if idx == -1 {
		return name
	}

	return name[idx+1:]
}
