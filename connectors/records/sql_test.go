// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package records

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folderlink/platform/connectors/base"
)

var recordID = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newMockWriter(t *testing.T, dialect Dialect, cfg SQLConfig) (*SQLWriter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg.Dialect = dialect
	cfg.Logger = quietLogger()
	w, err := NewSQLWriter(db, cfg)
	require.NoError(t, err)
	return w, mock
}

func TestSQLWriter_Update_Postgres(t *testing.T) {
	w, mock := newMockWriter(t, DialectPostgres, SQLConfig{})

	mock.ExpectExec(`UPDATE "incident" SET "crad2_folderurl" = $1 WHERE "id" = $2`).
		WithArgs("https://a.blob.core.windows.net/c/"+recordID.String()+"/", recordID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.Update(context.Background(), "incident", recordID, map[string]any{
		"crad2_folderurl": "https://a.blob.core.windows.net/c/" + recordID.String() + "/",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriter_Update_MySQLWithMapping(t *testing.T) {
	w, mock := newMockWriter(t, DialectMySQL, SQLConfig{
		IDColumn: "record_id",
		Tables:   map[string]string{"incident": "cases"},
	})

	mock.ExpectExec("UPDATE `cases` SET `a_field` = ?, `b_field` = ? WHERE `record_id` = ?").
		WithArgs("a", "b", recordID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.Update(context.Background(), "incident", recordID, map[string]any{"b_field": "b", "a_field": "a"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriter_Update_NotFound(t *testing.T) {
	w, mock := newMockWriter(t, DialectPostgres, SQLConfig{})
	mock.ExpectExec(`UPDATE "incident" SET "f" = $1 WHERE "id" = $2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := w.Update(context.Background(), "incident", recordID, map[string]any{"f": "v"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLWriter_Update_DriverError(t *testing.T) {
	w, mock := newMockWriter(t, DialectPostgres, SQLConfig{})
	mock.ExpectExec(`UPDATE "incident" SET "f" = $1 WHERE "id" = $2`).
		WillReturnError(&pq.Error{Code: "42703", Message: "column does not exist"})

	err := w.Update(context.Background(), "incident", recordID, map[string]any{"f": "v"})
	require.Error(t, err)

	var ce *base.ConnectorError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Message, "42703")
	assert.Contains(t, ce.Message, "undefined_column")
}

func TestSQLWriter_Update_RejectsUnsafeNames(t *testing.T) {
	w, mock := newMockWriter(t, DialectPostgres, SQLConfig{})

	tests := []struct {
		name   string
		entity string
		fields map[string]any
	}{
		{name: "no fields", entity: "incident", fields: nil},
		{name: "bad table", entity: "incident; DROP TABLE x", fields: map[string]any{"f": 1}},
		{name: "reserved table", entity: "select", fields: map[string]any{"f": 1}},
		{name: "bad column", entity: "incident", fields: map[string]any{"f = 1 --": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Update(context.Background(), tt.entity, recordID, tt.fields)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement reaches the database")
}

func TestNewSQLWriter_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLWriter(db, SQLConfig{Dialect: "oracle"})
	assert.Error(t, err)

	_, err = NewSQLWriter(db, SQLConfig{Dialect: DialectPostgres, IDColumn: "id;"})
	assert.Error(t, err)
}

func TestSQLWriter_RetrieveMultiple(t *testing.T) {
	w, mock := newMockWriter(t, DialectPostgres, SQLConfig{MaxRows: 2})

	rows := sqlmock.NewRows([]string{"id", "title", "count"}).
		AddRow([]byte("1"), "first", 3).
		AddRow([]byte("2"), "second", 4).
		AddRow([]byte("3"), "third", 5)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, title, count FROM incident").WillReturnRows(rows)
	mock.ExpectRollback()

	got, err := w.RetrieveMultiple(context.Background(), "  SELECT id, title, count FROM incident; ")
	require.NoError(t, err)
	require.Len(t, got, 2, "capped at MaxRows")
	assert.Equal(t, "1", got[0]["id"], "[]byte values become strings")
	assert.Equal(t, "first", got[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriter_RetrieveMultiple_RunsInRolledBackTransaction(t *testing.T) {
	w, mock := newMockWriter(t, DialectMySQL, SQLConfig{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT * INTO stolen_copy FROM incident").
		WillReturnError(errors.New("cannot execute SELECT INTO in a read-only transaction"))
	mock.ExpectRollback()

	_, err := w.RetrieveMultiple(context.Background(), "SELECT * INTO stolen_copy FROM incident")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "query must run inside a transaction that is rolled back")
}

func TestSQLWriter_RetrieveMultiple_BeginFails(t *testing.T) {
	w, mock := newMockWriter(t, DialectPostgres, SQLConfig{})

	mock.ExpectBegin().WillReturnError(errors.New("read-only transactions unsupported"))

	_, err := w.RetrieveMultiple(context.Background(), "SELECT id FROM incident")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriter_RetrieveMultiple_RejectsWrites(t *testing.T) {
	w, _ := newMockWriter(t, DialectMySQL, SQLConfig{})

	for _, q := range []string{
		"DELETE FROM incident",
		"SELECT 1; DROP TABLE incident",
		"",
	} {
		_, err := w.RetrieveMultiple(context.Background(), q)
		assert.Error(t, err, q)
	}
}

func TestSQLWriter_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	w, err := NewSQLWriter(db, SQLConfig{Dialect: DialectPostgres, Logger: quietLogger()})
	require.NoError(t, err)

	mock.ExpectPing()
	status, err := w.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Details, "open_connections")

	mock.ExpectPing().WillReturnError(errors.New("down"))
	status, err = w.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "down", status.Error)
}

func TestDescribeSQLError(t *testing.T) {
	assert.Equal(t, "statement execution failed", describeSQLError(errors.New("x")))
	assert.Contains(t, describeSQLError(&pq.Error{Code: "23505"}), "unique_violation")
}
