// Package geography checks user-supplied city corporation, thana and ward
// references against the administrative hierarchy tables.
package geography

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

var ErrInvalidGeography = errors.New("invalid geography")

// Error carries a reason that is shown to the caller verbatim.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Is(target error) bool { return target == ErrInvalidGeography }

func invalid(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

type Validator interface {
	Validate(ctx context.Context, g types.Geography) error
}

var _ Validator = (*PostgresValidator)(nil)

type PostgresValidator struct {
	logger *slog.Logger
	db     api.DBTX
}

func NewPostgresValidator(db api.DBTX, logger *slog.Logger) *PostgresValidator {
	return &PostgresValidator{db: db, logger: logger}
}

// Validate returns nil for an empty geography, an *Error for a rejected one
// and a wrapped store error otherwise.
func (v *PostgresValidator) Validate(ctx context.Context, g types.Geography) error {
	if g.IsEmpty() {
		return nil
	}
	ctx, span := otel.Tracer("GeographyValidator").Start(ctx, "Validate", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
	))
	defer span.End()

	l := v.logger.With(slog.String("method", "Validate"))

	if g.CityCorporationCode == nil {
		return invalid("City corporation is required when thana, ward or zone is provided")
	}
	code := *g.CityCorporationCode

	var (
		name    string
		status  string
		minWard int
		maxWard int
	)
	err := v.db.QueryRow(ctx,
		`SELECT name, status, min_ward, max_ward FROM city_corporations WHERE code = $1`,
		code).Scan(&name, &status, &minWard, &maxWard)
	if errors.Is(err, pgx.ErrNoRows) {
		return invalid("City corporation %s not found", code)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to load city corporation", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "city corporation lookup failed")
		return fmt.Errorf("failed to load city corporation: %w", err)
	}
	if status != "ACTIVE" {
		return invalid("City corporation %s is not active", name)
	}

	if g.Ward != nil && (*g.Ward < minWard || *g.Ward > maxWard) {
		return invalid("Ward must be between %d and %d for %s", minWard, maxWard, name)
	}

	if g.ThanaID != nil {
		var thanaCity, thanaStatus string
		err := v.db.QueryRow(ctx,
			`SELECT city_corporation_code, status FROM thanas WHERE id = $1`,
			*g.ThanaID).Scan(&thanaCity, &thanaStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return invalid("Thana not found")
		}
		if err != nil {
			l.ErrorContext(ctx, "Failed to load thana", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "thana lookup failed")
			return fmt.Errorf("failed to load thana: %w", err)
		}
		if thanaCity != code {
			return invalid("Thana does not belong to %s", name)
		}
		if thanaStatus != "ACTIVE" {
			return invalid("Thana is not active")
		}
	}

	span.SetStatus(codes.Ok, "geography valid")
	return nil
}
