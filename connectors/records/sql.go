// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"folderlink/platform/connectors/base"
)

// Dialect selects placeholder and quoting rules.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

const (
	// DefaultTimeout is the default statement timeout
	DefaultTimeout = 30 * time.Second
	// DefaultIDColumn is the primary key column of record tables
	DefaultIDColumn = "id"
	// DefaultMaxRows bounds RetrieveMultiple
	DefaultMaxRows = 5000
)

// SQLConfig configures a SQLWriter
type SQLConfig struct {
	Dialect  Dialect
	IDColumn string            // Optional: key column (default: id)
	Tables   map[string]string // Optional: entity to table name (default: entity name)
	Timeout  time.Duration     // Optional: statement timeout (default: 30s)
	MaxRows  int               // Optional: RetrieveMultiple row cap (default: 5000)
	Logger   *log.Logger
}

// SQLWriter links folders to rows of a relational record store
type SQLWriter struct {
	db     *sql.DB
	cfg    SQLConfig
	logger *log.Logger
}

// OpenSQL opens and pings a record database. MySQL DSNs are normalized to
// parse time values and count matched rows.
func OpenSQL(ctx context.Context, dsn string, cfg SQLConfig) (*SQLWriter, error) {
	driver := string(cfg.Dialect)
	switch cfg.Dialect {
	case DialectPostgres:
	case DialectMySQL:
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, base.NewConnectorError("records-mysql", "Open", "invalid DSN", err)
		}
		parsed.ParseTime = true
		// Report matched rather than changed rows so re-linking the same
		// URL is not mistaken for a missing record.
		parsed.ClientFoundRows = true
		parsed.Loc = time.UTC
		dsn = parsed.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported SQL dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, base.NewConnectorError("records-"+driver, "Open", "failed to open connection", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, base.NewConnectorError("records-"+driver, "Open", "failed to ping database", err)
	}

	return NewSQLWriter(db, cfg)
}

// NewSQLWriter wraps an open database
func NewSQLWriter(db *sql.DB, cfg SQLConfig) (*SQLWriter, error) {
	if cfg.Dialect != DialectPostgres && cfg.Dialect != DialectMySQL {
		return nil, fmt.Errorf("unsupported SQL dialect %q", cfg.Dialect)
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = DefaultIDColumn
	}
	if err := base.ValidateSQLIdentifier(cfg.IDColumn); err != nil {
		return nil, fmt.Errorf("id column: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[RECORDS_SQL] ", log.LstdFlags)
	}

	return &SQLWriter{db: db, cfg: cfg, logger: cfg.Logger}, nil
}

// Name returns the writer name
func (w *SQLWriter) Name() string {
	return "records-" + string(w.cfg.Dialect)
}

func (w *SQLWriter) quote(ident string) string {
	if w.cfg.Dialect == DialectPostgres {
		return pq.QuoteIdentifier(ident)
	}
	return "`" + ident + "`"
}

func (w *SQLWriter) placeholder(n int) string {
	if w.cfg.Dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (w *SQLWriter) table(entity string) (string, error) {
	table := entity
	if mapped, ok := w.cfg.Tables[entity]; ok {
		table = mapped
	}
	if err := base.ValidateSQLIdentifier(table); err != nil {
		return "", err
	}
	return table, nil
}

// buildUpdate renders the UPDATE statement and its arguments.
func (w *SQLWriter) buildUpdate(entity string, id uuid.UUID, fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}
	table, err := w.table(entity)
	if err != nil {
		return "", nil, err
	}

	keys := sortedKeys(fields)
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		if err := base.ValidateSQLIdentifier(k); err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", w.quote(k), w.placeholder(i+1)))
		args = append(args, fields[k])
	}
	args = append(args, id.String())

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		w.quote(table), strings.Join(sets, ", "), w.quote(w.cfg.IDColumn), w.placeholder(len(keys)+1))
	return stmt, args, nil
}

// Update sets fields on the row whose key equals id.
func (w *SQLWriter) Update(ctx context.Context, entity string, id uuid.UUID, fields map[string]any) error {
	stmt, args, err := w.buildUpdate(entity, id, fields)
	if err != nil {
		return base.NewConnectorError(w.Name(), "Update", "invalid update", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := w.db.ExecContext(execCtx, stmt, args...)
	if err != nil {
		return base.NewConnectorError(w.Name(), "Update", describeSQLError(err), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		w.logger.Printf("Warning: Could not get rows affected: %v", err)
		affected = 1
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}

	w.logger.Printf("Updated %s %s (%d fields) in %v", entity, id, len(fields), time.Since(start))
	return nil
}

// RetrieveMultiple runs a single SELECT inside a read-only transaction that
// is always rolled back, and returns each row as a map.
func (w *SQLWriter) RetrieveMultiple(ctx context.Context, query string) ([]map[string]any, error) {
	stmt := strings.TrimRight(strings.TrimSpace(query), "; \n\t")
	if !strings.HasPrefix(strings.ToUpper(stmt), "SELECT") || strings.Contains(stmt, ";") {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "only a single SELECT statement is allowed", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	tx, err := w.db.BeginTx(queryCtx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "failed to begin read-only transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(queryCtx, stmt)
	if err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", describeSQLError(err), err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "failed to get columns", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		if len(results) >= w.cfg.MaxRows {
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "error during row iteration", err)
	}

	return results, nil
}

// HealthCheck pings the database
func (w *SQLWriter) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	hs := base.Probe(ctx, w.db.PingContext)
	if hs.Healthy {
		stats := w.db.Stats()
		hs.Details = map[string]string{
			"open_connections": strconv.Itoa(stats.OpenConnections),
			"in_use":           strconv.Itoa(stats.InUse),
			"idle":             strconv.Itoa(stats.Idle),
		}
	}
	return hs, nil
}

// Close closes the database
func (w *SQLWriter) Close() error {
	return w.db.Close()
}

// describeSQLError names the driver error class when there is one.
func describeSQLError(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Sprintf("postgres error %s (%s)", pqErr.Code, pqErr.Code.Name())
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("mysql error %d", myErr.Number)
	}
	return "statement execution failed"
}
