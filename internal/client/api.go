package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
)

const DefaultBaseURL = "http://localhost:3000/api"

// APIError is a non-2xx answer from the API, decoded from its error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type APIClient struct {
	baseURL string
	hc      *http.Client
	token   string
}

func NewAPIClient(baseURL string, hc *http.Client) *APIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// SetToken sets the bearer token sent on expense calls. Empty clears it.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

func (c *APIClient) Register(ctx context.Context, email, password, displayName string) (identity.Identity, error) {
	var out identity.Identity
	in := identity.RegisterInput{Email: email, Password: password, DisplayName: displayName}
	err := c.do(ctx, http.MethodPost, "/auth/register", in, &out)

	return out, err
}

func (c *APIClient) Login(ctx context.Context, email, password string) (identity.Session, error) {
	var out identity.Session
	err := c.do(ctx, http.MethodPost, "/auth/login", identity.SignInInput{Email: email, Password: password}, &out)

	return out, err
}

func (c *APIClient) VerifyToken(ctx context.Context, token string) (identity.Identity, error) {
	var out identity.Identity
	err := c.do(ctx, http.MethodPost, "/auth/verify-token", identity.VerifyTokenInput{Token: token}, &out)

	return out, err
}

func (c *APIClient) ListExpenses(ctx context.Context, userID string) ([]expense.Expense, error) {
	out := []expense.Expense{}
	err := c.do(ctx, http.MethodGet, "/expenses/"+url.PathEscape(userID), nil, &out)

	return out, err
}

func (c *APIClient) AddExpense(ctx context.Context, in expense.Input) (expense.Expense, error) {
	var out expense.Expense
	err := c.do(ctx, http.MethodPost, "/expenses", in, &out)

	return out, err
}

func (c *APIClient) UpdateExpense(ctx context.Context, id string, in expense.Input) (expense.Expense, error) {
	var out expense.Expense
	err := c.do(ctx, http.MethodPut, "/expenses/"+url.PathEscape(id), in, &out)

	return out, err
}

func (c *APIClient) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/expenses/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}

	return apiErr
}
