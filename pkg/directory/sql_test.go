package directory

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLStore runs against a disposable PostgreSQL database named by
// STKGATE_TEST_DSN and is skipped otherwise.
func TestSQLStore(t *testing.T) {
	dsn := os.Getenv("STKGATE_TEST_DSN")
	if dsn == "" {
		t.Skip("STKGATE_TEST_DSN not set")
	}

	s, err := NewSQLStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.db.Exec("TRUNCATE stk_stockers, stk_ports, stk_carriers, stk_logicals, stk_tags, stk_lots").Error)
	require.NoError(t, s.Import(ctx, testSeed()))

	p, err := s.PortBySensor(ctx, "IRT-0001")
	require.NoError(t, err)
	assert.Equal(t, "PORT-A", p.Name)

	require.NoError(t, s.Associate(ctx, "CST002", "LOT002"))
	assert.ErrorIs(t, s.Associate(ctx, "R00001", "LOT002"), ErrConflict)

	c, err := s.CarrierByLogical(ctx, "LOT002")
	require.NoError(t, err)
	assert.Equal(t, "CST002", c.ID)

	require.NoError(t, s.Disassociate(ctx, "CST002", "LOT002"))
	_, err = s.CarrierByLogical(ctx, "LOT002")
	assert.ErrorIs(t, err, ErrNotFound)

	seed, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, seed.Carriers, 3)
}
