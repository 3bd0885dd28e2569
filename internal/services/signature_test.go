package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"psyeval/internal/apperrors"
	"psyeval/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ObjectStore double with the same conflict
// semantics as the HTTP implementation.
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPuts   int
	permDenied bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, path string, data []byte, contentType string, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permDenied {
		return apperrors.PermissionDenied("row-level security")
	}
	if s.failPuts > 0 {
		s.failPuts--
		return apperrors.Conflict("object %q already exists", path)
	}
	if _, exists := s.objects[path]; exists && !upsert {
		return apperrors.Conflict("object %q already exists", path)
	}
	s.objects[path] = data
	return nil
}

func (s *memStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return "https://store.test/" + path, nil
}

func TestSignRejectsShortStroke(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)

	_, err := env.signSvc.Sign(context.Background(), attempt.ID, SignInput{
		SignerRole:     models.SignerPaciente,
		StrokeLengthPx: 10,
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSignAcceptsSufficientStroke(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)

	sig, err := env.signSvc.Sign(context.Background(), attempt.ID, SignInput{
		SignerRole:     models.SignerPaciente,
		StrokeLengthPx: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignerPaciente, sig.FirmadoPor)
}

func TestSignRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)

	_, err := env.signSvc.Sign(context.Background(), attempt.ID, SignInput{
		SignerRole:     "testigo",
		StrokeLengthPx: 50,
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

// Signing twice by the same role is success with one stored row.
func TestDuplicateSignIsSuccess(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)
	ctx := context.Background()

	first, err := env.signSvc.Sign(ctx, attempt.ID, SignInput{
		SignerRole:     models.SignerOperador,
		StrokeLengthPx: 80,
	})
	require.NoError(t, err)

	second, err := env.signSvc.Sign(ctx, attempt.ID, SignInput{
		SignerRole:     models.SignerOperador,
		StrokeLengthPx: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	sigs, err := env.signSvc.Signatures(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestSignUploadsArtifactWithConflictRetry(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)

	// First path is taken; the alternate filename must be used.
	env.store.failPuts = 1
	sig, err := env.signSvc.Sign(context.Background(), attempt.ID, SignInput{
		SignerRole:     models.SignerPaciente,
		StrokeLengthPx: 60,
		Image:          []byte{0x89, 0x50, 0x4e, 0x47},
		ImageMime:      "image/png",
	})
	require.NoError(t, err)
	require.NotNil(t, sig.FirmaPath)
	assert.Contains(t, *sig.FirmaPath, "-1.png")
}

func TestSignAbortsAfterRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)

	env.store.failPuts = 3
	_, err := env.signSvc.Sign(context.Background(), attempt.ID, SignInput{
		SignerRole:     models.SignerPaciente,
		StrokeLengthPx: 60,
		Image:          []byte{0x01},
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSignTranslatesPermissionDenied(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)

	env.store.permDenied = true
	_, err := env.signSvc.Sign(context.Background(), attempt.ID, SignInput{
		SignerRole:     models.SignerPaciente,
		StrokeLengthPx: 60,
		Image:          []byte{0x01},
	})
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "no permission to store the signature artifact")
}

func TestFullySignedNeedsBothRoles(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCase(t, "MCMI")
	attempt := env.finishTest(t, c.ID, "MCMI", 1)
	ctx := context.Background()

	_, err := env.signSvc.Sign(ctx, attempt.ID, SignInput{
		SignerRole: models.SignerPaciente, StrokeLengthPx: 50,
	})
	require.NoError(t, err)

	full, err := env.signSvc.FullySigned(ctx, attempt.ID)
	require.NoError(t, err)
	assert.False(t, full)

	_, err = env.signSvc.Sign(ctx, attempt.ID, SignInput{
		SignerRole: models.SignerOperador, StrokeLengthPx: 50,
	})
	require.NoError(t, err)

	full, err = env.signSvc.FullySigned(ctx, attempt.ID)
	require.NoError(t, err)
	assert.True(t, full)
}
