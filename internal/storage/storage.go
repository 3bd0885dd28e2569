package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"psyeval/internal/apperrors"

	"go.uber.org/zap"
)

// ObjectStore is the boundary to the object-storage collaborator. Put
// refuses to overwrite unless upsert is set, reporting the collision as a
// ConflictError so callers can retry with an alternate path.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string, upsert bool) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// HTTPStore talks to a Supabase-style storage API:
// POST /object/{bucket}/{path} uploads, POST /object/sign/{bucket}/{path}
// issues a time-limited download URL.
type HTTPStore struct {
	httpClient *http.Client
	log        *zap.Logger
	baseURL    string
	bucket     string
	serviceKey string
}

func NewHTTPStore(baseURL, bucket, serviceKey string, log *zap.Logger) *HTTPStore {
	return &HTTPStore{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
	}
}

func (s *HTTPStore) Put(ctx context.Context, path string, data []byte, contentType string, upsert bool) error {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return &apperrors.StorageError{Msg: "failed to build upload request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if upsert {
		req.Header.Set("x-upsert", "true")
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return &apperrors.StorageError{Msg: "storage unreachable", Cause: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusConflict:
		return apperrors.Conflict("object already exists: %s", path)
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return apperrors.PermissionDenied("no permission to write to bucket %q", s.bucket)
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &apperrors.StorageError{
			Msg:  fmt.Sprintf("storage upload returned %d", res.StatusCode),
			Hint: fmt.Sprintf("check bucket %q exists and the service key has write access: %s", s.bucket, string(body)),
		}
	}
}

func (s *HTTPStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	url := fmt.Sprintf("%s/object/sign/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(path, "/"))
	payload, _ := json.Marshal(map[string]int{"expiresIn": int(ttl.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &apperrors.StorageError{Msg: "failed to build sign request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return "", &apperrors.StorageError{Msg: "storage unreachable", Cause: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", &apperrors.StorageError{Msg: fmt.Sprintf("storage sign returned %d", res.StatusCode)}
	}

	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", &apperrors.StorageError{Msg: "malformed sign response", Cause: err}
	}
	if out.SignedURL == "" {
		return "", &apperrors.StorageError{Msg: "sign response missing signedURL"}
	}
	if strings.HasPrefix(out.SignedURL, "/") {
		return s.baseURL + out.SignedURL, nil
	}
	return out.SignedURL, nil
}
