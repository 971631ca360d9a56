package csvio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"canvas-batch/internal/logging"
	"canvas-batch/internal/util"
)

// pgxConnectFunc allows overriding pgx.Connect in tests.
var pgxConnectFunc = pgx.Connect

// Default timeout for roster queries.
const defaultDBTimeout = 30 * time.Second

// PostgresRosterSource loads student login IDs from a SIS database. The
// configured query must return one text column of login IDs.
type PostgresRosterSource struct {
	connStr string
	query   string
}

// NewPostgresRosterSource creates a roster source for a connection string and
// query. Environment variables in the connection string are expanded at
// query time.
func NewPostgresRosterSource(connStr, query string) *PostgresRosterSource {
	return &PostgresRosterSource{connStr: connStr, query: query}
}

// LoginIDs executes the roster query and returns the login IDs in query
// order. Empty values are skipped.
func (ps *PostgresRosterSource) LoginIDs(ctx context.Context) ([]string, error) {
	logging.Logf(logging.Debug, "PostgresRosterSource reading roster using query: %s", ps.query)
	queryCtx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	expandedConnStr := util.ExpandEnv(ps.connStr)
	conn, err := pgxConnectFunc(queryCtx, expandedConnStr)
	if err != nil {
		maskedConnStr := util.MaskCredentials(expandedConnStr)
		logging.Logf(logging.Error, "PostgresRosterSource failed to connect using connection string: %s", maskedConnStr)
		if errors.Is(err, context.DeadlineExceeded) || queryCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("PostgresRosterSource database connection timed out: %w", queryCtx.Err())
		}
		return nil, fmt.Errorf("PostgresRosterSource failed to connect to database (using %s): %w", maskedConnStr, err)
	}
	defer conn.Close(queryCtx)

	rows, err := conn.Query(queryCtx, ps.query)
	if err != nil {
		return nil, fmt.Errorf("PostgresRosterSource failed to execute query '%s': %w", ps.query, err)
	}
	defer rows.Close()

	var loginIDs []string
	for rows.Next() {
		var loginID string
		if err := rows.Scan(&loginID); err != nil {
			return nil, fmt.Errorf("PostgresRosterSource failed to scan roster row: %w", err)
		}
		if loginID == "" {
			continue
		}
		loginIDs = append(loginIDs, loginID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PostgresRosterSource error while iterating roster rows: %w", err)
	}

	logging.Logf(logging.Debug, "PostgresRosterSource loaded %d login IDs", len(loginIDs))
	return loginIDs, nil
}
