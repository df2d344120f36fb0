package monitoring_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/monitoring"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/testutil"
)

func TestPostgres(t *testing.T) {
	dsn := testutil.StartPostgres(t)

	db, err := monitoring.Open(context.Background(), monitoring.Config{Dialect: "postgresql", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	exercise(t, db)
}
