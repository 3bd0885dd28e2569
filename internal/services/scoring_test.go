package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreAttemptAggregatesWithInverseItems(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "PAI")
	attempt := env.finishTest(t, c.ID, "PAI", 3)

	scores, err := env.scoringSvc.ScoresForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	// Item 1 contributes 3, the reverse-keyed item 2 contributes 3-3=0.
	assert.Equal(t, "PAI_ANS", scores[0].Escala)
	assert.Equal(t, 3, scores[0].PuntajeBruto)
	require.NotNil(t, scores[0].PuntajeConv)
	assert.Equal(t, 55, *scores[0].PuntajeConv)
	assert.Equal(t, "2020", scores[0].NormativaVersion)
}

// A raw value outside the normative table stores with a nil conversion and
// no error.
func TestMissingNormRowLeavesConversionNil(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MMPI")
	attempt := env.finishTest(t, c.ID, "MMPI", 0)

	scores, err := env.scoringSvc.ScoresForAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	assert.Equal(t, "MMPI_D", scores[0].Escala)
	assert.Nil(t, scores[0].PuntajeConv)
}

func TestRescoringIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)
	ctx := context.Background()

	require.NoError(t, env.scoringSvc.ScoreAttempt(ctx, attempt.ID))
	require.NoError(t, env.scoringSvc.ScoreAttempt(ctx, attempt.ID))

	scores, err := env.scoringSvc.ScoresForAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 1, scores[0].PuntajeBruto)
	require.NotNil(t, scores[0].PuntajeConv)
	assert.Equal(t, 75, *scores[0].PuntajeConv)
}

func TestUnansweredScaleScoresZero(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	mcmi := env.mustTest(t, "MCMI")
	ctx := context.Background()

	attempt, err := env.attemptSvc.Start(ctx, env.operator, c.ID, mcmi.ID)
	require.NoError(t, err)
	finished, err := env.attemptSvc.Finish(ctx, env.operator, attempt.ID)
	require.NoError(t, err)

	scores, err := env.scoringSvc.ScoresForAttempt(ctx, finished.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 0, scores[0].PuntajeBruto)
}
