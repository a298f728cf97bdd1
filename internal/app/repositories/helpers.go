package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yigit/placementdesk/internal/app/models"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/dberrors"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// dbError wraps a driver error, turning connection failures into
// apperrors.ErrUpstreamUnavailable.
func dbError(err error, msg string) error {
	if dberrors.IsUnavailable(err) {
		return apperrors.NewUpstreamError(err, msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func classesToStrings(classes []models.StudentClass) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = string(c)
	}
	return out
}

func stringsToClasses(values []string) []models.StudentClass {
	out := make([]models.StudentClass, len(values))
	for i, v := range values {
		out[i] = models.StudentClass(v)
	}
	return out
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
