package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/api/googleapi"
)

// ObserveGateway times fn under op and counts its failure class. A nil
// receiver just runs fn, so callers can pass a nil *Prom in tests.
func (p *Prom) ObserveGateway(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil {
		class := classifyGatewayErr(err)
		status = "error"

		// expected outcomes, not failures of the dependency
		if class == "not_found" || class == "rejected" {
			status = class
		}

		p.GatewayErrorsTotal.WithLabelValues(op, class).Inc()
	}
	p.GatewayDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyGatewayErr(err error) string {
	var regErr *identity.RegistrationError

	switch {
	case errors.Is(err, expense.ErrNotFound):
		return "not_found"
	case errors.Is(err, identity.ErrInvalidCredential), errors.As(err, &regErr):
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return "throttled"
		case apiErr.Code >= 500:
			return "upstream_5xx"
		default:
			return "upstream_4xx"
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "pg_" + pgErr.Code
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "unreachable"):
		return "connection"
	default:
		return "unknown"
	}
}
