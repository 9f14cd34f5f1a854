package allocation

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/avramidis/optsentry/internal/domain"
)

func setupTestRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestSeedDefaults_OnlyOnce(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SeedDefaults())
	rules, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, rules, len(DefaultRules()))

	// Mutate one rule, re-seed, and confirm the mutation survives.
	custom := rules[0]
	custom.TargetPct = custom.MaxPct
	require.NoError(t, repo.Upsert(custom))
	require.NoError(t, repo.SeedDefaults())

	after, err := repo.GetByAxis(custom.Axis)
	require.NoError(t, err)
	found := false
	for _, r := range after {
		if r.Category == custom.Category {
			found = true
			assert.InDelta(t, custom.MaxPct, r.TargetPct, 0.0001)
		}
	}
	assert.True(t, found)
}

func TestUpsert_UpdatesInPlace(t *testing.T) {
	repo := setupTestRepo(t)

	rule := Rule{Axis: domain.AxisDuration, Category: "short_term", TargetPct: 40, MinPct: 30, MaxPct: 50, TolerancePct: 5}
	require.NoError(t, repo.Upsert(rule))

	rule.TargetPct = 45
	require.NoError(t, repo.Upsert(rule))

	rules, err := repo.GetByAxis(domain.AxisDuration)
	require.NoError(t, err)
	require.Len(t, rules, 1, "upsert must not create a second row for the same key")
	assert.InDelta(t, 45.0, rules[0].TargetPct, 0.0001)
}

func TestUpsert_RejectsInvalidRule(t *testing.T) {
	repo := setupTestRepo(t)

	tests := []struct {
		name string
		rule Rule
	}{
		{"unknown axis", Rule{Axis: "galaxy", Category: "x", TargetPct: 10, MaxPct: 20}},
		{"empty category", Rule{Axis: domain.AxisStrategy, TargetPct: 10, MaxPct: 20}},
		{"min above target", Rule{Axis: domain.AxisStrategy, Category: "bullish", TargetPct: 10, MinPct: 20, MaxPct: 30}},
		{"max below target", Rule{Axis: domain.AxisStrategy, Category: "bullish", TargetPct: 40, MinPct: 20, MaxPct: 30}},
		{"negative tolerance", Rule{Axis: domain.AxisStrategy, Category: "bullish", TargetPct: 25, MinPct: 20, MaxPct: 30, TolerancePct: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, repo.Upsert(tt.rule))
		})
	}
}

func TestBulkUpsert_PartialSuccess(t *testing.T) {
	repo := setupTestRepo(t)

	rules := []Rule{
		{Axis: domain.AxisStrategy, Category: "bullish", TargetPct: 40, MinPct: 25, MaxPct: 50, TolerancePct: 5},
		{Axis: "bogus", Category: "broken", TargetPct: 10, MaxPct: 20},
		{Axis: domain.AxisStrategy, Category: "neutral", TargetPct: 40, MinPct: 25, MaxPct: 55, TolerancePct: 5},
	}

	saved, ruleErrors := repo.BulkUpsert(rules)
	assert.Equal(t, 2, saved)
	require.Len(t, ruleErrors, 1)
	assert.Equal(t, "broken", ruleErrors[0].Category)

	stored, err := repo.GetByAxis(domain.AxisStrategy)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestDelete(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.SeedDefaults())

	require.NoError(t, repo.Delete(domain.AxisAssetClass, "cash"))

	rules, err := repo.GetByAxis(domain.AxisAssetClass)
	require.NoError(t, err)
	for _, r := range rules {
		assert.NotEqual(t, "cash", r.Category)
	}
}
