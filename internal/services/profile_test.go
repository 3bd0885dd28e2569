package services

import (
	"context"
	"testing"

	"psyeval/internal/apperrors"
	"psyeval/internal/inference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One finished PAI attempt and nothing else: presence flags reflect exactly
// that, and the PAI scale value rides along.
func TestCollectFeaturesPresenceFlags(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI", "MCMI", "MMPI")
	env.finishTest(t, c.ID, "PAI", 3)

	features, err := env.profileSvc.CollectFeatures(context.Background(), c.ID)
	require.NoError(t, err)

	assert.Equal(t, float64(1), features["has_PAI"])
	assert.Equal(t, float64(0), features["has_MCMI"])
	assert.Equal(t, float64(0), features["has_MMPI"])
	assert.Equal(t, float64(55), features["PAI_ANS"])
}

func TestGenerateRequiresPrincipalAndRole(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI", "MCMI")

	_, err := env.profileSvc.Generate(context.Background(), nil, c.ID)
	require.ErrorIs(t, err, apperrors.ErrAuthRequired)
}

func TestGenerateRequiresFinishedBattery(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI", "MCMI")
	env.finishTest(t, c.ID, "PAI", 3)

	_, err := env.profileSvc.Generate(context.Background(), env.operator, c.ID)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	ready, missing, err := env.profileSvc.Ready(context.Background(), c.ID)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, []string{"MCMI"}, missing)
}

func TestGenerateIsIdempotentPerModelVersion(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI", "MCMI")
	env.finishTest(t, c.ID, "PAI", 3)
	env.finishTest(t, c.ID, "MCMI", 1)
	ctx := context.Background()

	first, err := env.profileSvc.Generate(ctx, env.operator, c.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "ansioso", first.Profile.PerfilClinico)

	second, err := env.profileSvc.Generate(ctx, env.admin, c.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Profile.ID, second.Profile.ID)
	// The fresh inference run is still returned for display.
	require.NotNil(t, second.Fresh)
	assert.Equal(t, "ansioso", second.Fresh.PerfilClinico)

	// Both calls hit the collaborator; only the first persisted.
	assert.Equal(t, 2, env.inferCalls)
}

func TestViewNeverPersists(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI", "MCMI")
	env.finishTest(t, c.ID, "PAI", 3)
	env.finishTest(t, c.ID, "MCMI", 1)
	ctx := context.Background()

	fresh, err := env.profileSvc.View(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ansioso", fresh.PerfilClinico)

	stored, err := env.profileSvc.Latest(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLatestReturnsStoredProfileWithSummary(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI", "MCMI")
	env.finishTest(t, c.ID, "PAI", 3)
	env.finishTest(t, c.ID, "MCMI", 1)
	ctx := context.Background()

	_, err := env.profileSvc.Generate(ctx, env.operator, c.ID)
	require.NoError(t, err)

	stored, err := env.profileSvc.Latest(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Perfil IA v1: ansioso (0.87)", stored.Summary)
}

func TestNormalizeContributions(t *testing.T) {
	feats := []inference.TopFeature{
		{Feature: "a", Aporte: 0.6},
		{Feature: "b", Aporte: -0.3},
		{Feature: "c", Aporte: 0.1},
		{Feature: "d", Aporte: 0.001},
	}

	contribs := NormalizeContributions(feats)
	require.Len(t, contribs, 4)

	var sum float64
	for _, c := range contribs {
		assert.GreaterOrEqual(t, c.Pct, float64(0))
		assert.LessOrEqual(t, c.Pct, float64(100))
		assert.GreaterOrEqual(t, c.Width, float64(2))
		sum += c.Pct
	}
	assert.InDelta(t, 100, sum, 0.001)

	// The sign of the raw contribution survives normalization.
	assert.Equal(t, -0.3, contribs[1].Aporte)
	// Tiny contributors get the display floor but keep their true share.
	assert.Less(t, contribs[3].Pct, float64(2))
	assert.Equal(t, float64(2), contribs[3].Width)
}

func TestNormalizeContributionsEmpty(t *testing.T) {
	assert.Empty(t, NormalizeContributions(nil))
}
