package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"psyeval/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T, handler http.HandlerFunc) *HTTPStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPStore(srv.URL, "firmas", "service-key", zap.NewNop())
}

func TestPutUploadsToBucketPath(t *testing.T) {
	var gotPath, gotAuth, gotUpsert string
	var gotBody []byte
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	err := store.Put(context.Background(), "firmas/abc/paciente.png", []byte("png-bytes"), "image/png", false)
	require.NoError(t, err)

	assert.Equal(t, "/object/firmas/firmas/abc/paciente.png", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Empty(t, gotUpsert)
	assert.Equal(t, []byte("png-bytes"), gotBody)
}

func TestPutConflictMapsToConflictError(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	err := store.Put(context.Background(), "x.png", []byte("x"), "image/png", false)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPutForbiddenMapsToPermissionDenied(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := store.Put(context.Background(), "x.png", []byte("x"), "image/png", false)
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestPutServerErrorCarriesBucketHint(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket missing", http.StatusInternalServerError)
	})

	err := store.Put(context.Background(), "x.png", []byte("x"), "image/png", false)
	require.ErrorIs(t, err, apperrors.ErrStorage)

	var storErr *apperrors.StorageError
	require.ErrorAs(t, err, &storErr)
	assert.Contains(t, storErr.Hint, `bucket "firmas"`)
}

func TestPutUpsertSetsHeader(t *testing.T) {
	var gotUpsert string
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotUpsert = r.Header.Get("x-upsert")
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, store.Put(context.Background(), "x.png", []byte("x"), "image/png", true))
	assert.Equal(t, "true", gotUpsert)
}

func TestSignedURLResolvesRelativePath(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/object/sign/firmas/x.png", r.URL.Path)
		var payload map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 3600, payload["expiresIn"])
		json.NewEncoder(w).Encode(map[string]string{"signedURL": "/object/sign/firmas/x.png?token=t"})
	})

	url, err := store.SignedURL(context.Background(), "x.png", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "http")
	assert.Contains(t, url, "token=t")
}

func TestSignedURLMalformedResponse(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})

	_, err := store.SignedURL(context.Background(), "x.png", time.Minute)
	require.ErrorIs(t, err, apperrors.ErrStorage)
}
