package postgres

import (
	"io/fs"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

func TestNewAuditRepository(t *testing.T) {
	repo := NewAuditRepository(nil)
	assert.NotNil(t, repo)
	assert.Nil(t, repo.pool)
}

func TestAuditArgs(t *testing.T) {
	score := 23.666666
	rec := model.ReconstructAuditRecord(
		uuid.New(), uuid.New(), time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		"B0FAKE123", "", valueobject.ClassificationHighRisk, &score,
		map[string]string{"counterfeit": "ok"}, false,
	)

	args := auditArgs(rec)

	require.Len(t, args, 9)
	assert.Equal(t, "high-risk", args[5])
	nd, ok := args[6].(decimal.NullDecimal)
	require.True(t, ok)
	assert.True(t, nd.Valid)
	assert.Equal(t, "23.67", nd.Decimal.StringFixed(2))
	assert.Equal(t, map[string]string{"counterfeit": "ok"}, args[7])

	degraded := model.ReconstructAuditRecord(uuid.New(), uuid.New(), time.Now(), "p", "",
		valueobject.ClassificationSuspicious, nil, nil, true)
	nd = auditArgs(degraded)[6].(decimal.NullDecimal)
	assert.False(t, nd.Valid, "degraded verdicts store a NULL score")
}

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"000001_create_trust_audit.up.sql",
		"000001_create_trust_audit.down.sql",
	}, names)
}
