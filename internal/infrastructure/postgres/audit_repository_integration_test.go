//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
	"github.com/bibbank/trust-engine/internal/infrastructure/postgres"
	"github.com/bibbank/trust-engine/pkg/testutil"
)

func TestAuditRepository_Integration(t *testing.T) {
	ctx := context.Background()
	pg := testutil.NewPostgresContainer(ctx, t)
	defer pg.Cleanup(t)
	pg.RunMigrations(t, postgres.Migrations())

	repo := postgres.NewAuditRepository(pg.Pool)
	require.NoError(t, repo.Ping(ctx))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 23.67
	first := model.ReconstructAuditRecord(uuid.New(), uuid.New(), base,
		testutil.TestProductID, testutil.TestSellerID, valueobject.ClassificationHighRisk, &score,
		map[string]string{"counterfeit": "ok", "sellerRisk": "ok"}, false)
	second := model.ReconstructAuditRecord(uuid.New(), first.VerdictID(), base.Add(time.Second),
		testutil.TestProductID, testutil.TestSellerID, valueobject.ClassificationHighRisk, &score,
		map[string]string{"counterfeit": "ok", "sellerRisk": "ok"}, true)
	other := model.ReconstructAuditRecord(uuid.New(), uuid.New(), base.Add(2*time.Second),
		testutil.TestProductID2, "", valueobject.ClassificationSuspicious, nil,
		map[string]string{"counterfeit": "timeout"}, false)

	require.NoError(t, repo.Write(ctx, first, second, other))

	t.Run("redelivery is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Write(ctx, first))

		all, err := repo.ListRecent(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("newest first with product filter", func(t *testing.T) {
		records, err := repo.ListRecent(ctx, testutil.TestProductID, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, second.ID(), records[0].ID())
		assert.True(t, records[0].Cached())
		testutil.AssertScore(t, 23.67, records[0].TrustScore())
		assert.Equal(t, "ok", records[0].SignalStatuses()["sellerRisk"])
		assert.Equal(t, first.ID(), records[1].ID())
	})

	t.Run("degraded record keeps a null score", func(t *testing.T) {
		records, err := repo.ListRecent(ctx, testutil.TestProductID2, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Nil(t, records[0].TrustScore())
		assert.Equal(t, valueobject.ClassificationSuspicious, records[0].Classification())
	})

	t.Run("limit", func(t *testing.T) {
		records, err := repo.ListRecent(ctx, "", 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, other.ID(), records[0].ID())
	})
}
