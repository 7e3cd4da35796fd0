package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	require.True(t, IsUniqueViolation(unique))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "42P01"}))
	require.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestUUIDConversions(t *testing.T) {
	id := uuid.New()
	require.Equal(t, id, FromUUID(UUID(id)))
	require.False(t, NullUUID(uuid.Nil).Valid)
	require.Equal(t, uuid.Nil, FromUUID(pgtype.UUID{}))
}

func TestTimeHelpers(t *testing.T) {
	require.True(t, TimeOrZero(pgtype.Timestamptz{}).IsZero())

	now := time.Now()
	ts := pgtype.Timestamptz{Time: now, Valid: true}
	require.Equal(t, now, TimeOrZero(ts))
}
