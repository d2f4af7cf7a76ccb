package firestore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/gcloud"
)

const (
	DefaultEndpoint   = "https://firestore.googleapis.com/"
	DefaultDatabase   = "(default)"
	DefaultCollection = "expenses"

	// Scope is the OAuth scope the service account needs.
	Scope = "https://www.googleapis.com/auth/datastore"
)

type Config struct {
	ProjectID  string
	Database   string
	Collection string
}

// ExpensesRepo keeps expenses as documents of one collection, filtered by
// the userId field at query time.
type ExpensesRepo struct {
	api        *gcloud.Client
	root       string // projects/{p}/databases/{db}/documents
	collection string
	now        func() time.Time
}

func NewExpensesRepo(api *gcloud.Client, cfg Config) *ExpensesRepo {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}

	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	return &ExpensesRepo{
		api:        api,
		root:       fmt.Sprintf("projects/%s/databases/%s/documents", cfg.ProjectID, cfg.Database),
		collection: cfg.Collection,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *ExpensesRepo) Insert(ctx context.Context, rec expense.Record) (expense.Expense, error) {
	fields := recordFields(rec)
	fields[fieldCreatedAt] = timestampValue(r.now())

	var created document

	err := r.api.Do(ctx, http.MethodPost, "v1/"+r.root+"/"+r.collection, nil, document{Fields: fields}, &created)

	if err != nil {
		return expense.Expense{}, r.classify("insert", err)
	}

	return r.decode(created)
}

func (r *ExpensesRepo) ListByOwner(ctx context.Context, userID string) ([]expense.Expense, error) {
	req := runQueryRequest{
		StructuredQuery: structuredQuery{
			From: []collectionSelector{{CollectionID: r.collection}},
			Where: &filter{
				FieldFilter: &fieldFilter{
					Field: fieldReference{FieldPath: fieldUserID},
					Op:    "EQUAL",
					Value: stringValue(userID),
				},
			},
		},
	}

	var stream []runQueryResponse

	err := r.api.Do(ctx, http.MethodPost, "v1/"+r.root+":runQuery", nil, req, &stream)

	if err != nil {
		return nil, fmt.Errorf("%w: firestore list: %w", expense.ErrStoreUnavailable, err)
	}

	output := make([]expense.Expense, 0, len(stream))

	for _, item := range stream {
		if item.Document == nil {
			continue
		}

		e, err := r.decode(*item.Document)

		if err != nil {
			return nil, err
		}

		output = append(output, e)
	}

	return output, nil
}

func (r *ExpensesRepo) Get(ctx context.Context, id string) (expense.Expense, error) {
	path, ok := r.documentPath(id)

	if !ok {
		return expense.Expense{}, expense.ErrNotFound
	}

	var doc document

	err := r.api.Do(ctx, http.MethodGet, path, nil, nil, &doc)

	if err != nil {
		return expense.Expense{}, r.classify("get", err)
	}

	return r.decode(doc)
}

// Replace overwrites the mutable fields and stamps updatedAt. The
// exists precondition turns an unknown id into a 404 instead of an upsert.
func (r *ExpensesRepo) Replace(ctx context.Context, id string, rec expense.Record) (expense.Expense, error) {
	path, ok := r.documentPath(id)

	if !ok {
		return expense.Expense{}, expense.ErrNotFound
	}

	fields := recordFields(rec)
	fields[fieldUpdatedAt] = timestampValue(r.now())

	query := url.Values{}
	query.Set("currentDocument.exists", "true")

	for _, f := range replaceMask {
		query.Add("updateMask.fieldPaths", f)
	}

	var doc document

	err := r.api.Do(ctx, http.MethodPatch, path, query, document{Fields: fields}, &doc)

	if err != nil {
		return expense.Expense{}, r.classify("replace", err)
	}

	return r.decode(doc)
}

func (r *ExpensesRepo) Delete(ctx context.Context, id string) error {
	path, ok := r.documentPath(id)

	if !ok {
		return expense.ErrNotFound
	}

	query := url.Values{}
	query.Set("currentDocument.exists", "true")

	err := r.api.Do(ctx, http.MethodDelete, path, query, nil, nil)

	if err != nil {
		return r.classify("delete", err)
	}

	return nil
}

// Ping lists at most one document id to prove credentials and reachability.
func (r *ExpensesRepo) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("pageSize", "1")
	query.Set("mask.fieldPaths", fieldUserID)

	err := r.api.Do(ctx, http.MethodGet, "v1/"+r.root+"/"+r.collection, query, nil, nil)

	if err != nil {
		return fmt.Errorf("%w: firestore ping: %w", expense.ErrStoreUnavailable, err)
	}

	return nil
}

// document ids are a single path segment
func (r *ExpensesRepo) documentPath(id string) (string, bool) {
	if id == "" || id == "." || id == ".." || strings.Contains(id, "/") {
		return "", false
	}

	return "v1/" + r.root + "/" + r.collection + "/" + url.PathEscape(id), true
}

func (r *ExpensesRepo) decode(doc document) (expense.Expense, error) {
	e, err := doc.toExpense()

	if err != nil {
		return expense.Expense{}, fmt.Errorf("%w: firestore: %v", expense.ErrStoreUnavailable, err)
	}

	return e, nil
}

func (r *ExpensesRepo) classify(op string, err error) error {
	if gcloud.StatusCode(err) == http.StatusNotFound {
		return expense.ErrNotFound
	}

	return fmt.Errorf("%w: firestore %s: %w", expense.ErrStoreUnavailable, op, err)
}
