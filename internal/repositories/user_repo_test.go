package repositories

import (
	"testing"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every live row has a NULL deleted_at, so the scan destination must accept
// one. This runs the same pgtype path row.Scan takes for that column.
func TestUserScan_NullDeletedAt(t *testing.T) {
	var user models.User
	typeMap := pgtype.NewMap()

	// ACT: scan a NULL timestamptz into the soft-delete field
	err := typeMap.Scan(pgtype.TimestamptzOID, pgx.BinaryFormatCode, nil, &user.DeletedAt)

	// ASSERT: NULL maps to nil instead of failing the whole row
	require.NoError(t, err)
	assert.Nil(t, user.DeletedAt)
}

func TestUserScan_PresentDeletedAt(t *testing.T) {
	var user models.User
	typeMap := pgtype.NewMap()

	err := typeMap.Scan(pgtype.TimestamptzOID, pgx.TextFormatCode, []byte("2026-09-01 10:00:00+00"), &user.DeletedAt)

	require.NoError(t, err)
	require.NotNil(t, user.DeletedAt)
	assert.Equal(t, 2026, user.DeletedAt.Year())
}
