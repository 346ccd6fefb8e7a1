package store

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestInboxTablesRejectsUnknownTable(t *testing.T) {
	assert.False(t, inboxTables["drop_table_students"])
	assert.True(t, inboxTables["wukongim_inbox"])
	assert.True(t, inboxTables["wecom_bot_inbox"])
}

func TestIsUniqueViolationMatchesCode23505(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}

func TestApplyPaginationAppendsLimitAndOffset(t *testing.T) {
	query, args := applyPagination("SELECT 1", []any{"proj"}, ListFilter{ProjectID: "proj", Limit: 10, Offset: 20})
	assert.Equal(t, "SELECT 1 LIMIT $2 OFFSET $3", query)
	assert.Equal(t, []any{"proj", 10, 20}, args)
}

func TestUnmarshalMapHandlesEmptyAndPopulated(t *testing.T) {
	var m map[string]any
	assert.NoError(t, unmarshalMap(nil, &m))
	assert.Nil(t, m)

	assert.NoError(t, unmarshalMap([]byte(`{"a":1}`), &m))
	assert.Equal(t, float64(1), m["a"])
}
