package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"psyeval/internal/apperrors"

	"go.uber.org/zap"
)

// TopFeature is one entry of the model's explanation: the feature, its input
// value, its signed contribution and the direction glyph from the service.
type TopFeature struct {
	Feature string  `json:"feature"`
	Valor   float64 `json:"valor"`
	Aporte  float64 `json:"aporte"`
	Sentido string  `json:"sentido"`
}

// Explicacion is the optional explanation block of the inference response.
type Explicacion struct {
	Metodo        string       `json:"metodo"`
	ClaseObjetivo string       `json:"clase_objetivo"`
	TopFeatures   []TopFeature `json:"top_features"`
}

// InferResponse is the payload of POST /inferir. PerfilClinico is required;
// a 200 without it is a malformed response and a hard failure.
type InferResponse struct {
	ModelVersion  string       `json:"model_version"`
	PerfilClinico string       `json:"perfil_clinico"`
	Probabilidad  float64      `json:"probabilidad"`
	Descripcion   string       `json:"descripcion,omitempty"`
	Explicacion   *Explicacion `json:"explicacion,omitempty"`
}

type inferRequest struct {
	Features map[string]float64 `json:"features"`
	Explain  bool               `json:"explain"`
	TopK     int                `json:"top_k"`
	Debug    bool               `json:"debug"`
}

// Client calls the external inference collaborator.
type Client struct {
	httpClient *http.Client
	log        *zap.Logger
	baseURL    string
	topK       int
}

// NewClient builds a client for the given base URL. timeout bounds the whole
// call; the default is 60s.
func NewClient(baseURL string, timeout time.Duration, topK int, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if topK <= 0 {
		topK = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		topK:       topK,
	}
}

// Infer posts the feature map to /inferir and validates the response shape.
// A deadline overrun surfaces as a TimeoutError distinct from transport and
// payload failures, so the caller can offer a retry.
func (c *Client) Infer(ctx context.Context, features map[string]float64) (*InferResponse, error) {
	payload := inferRequest{
		Features: features,
		Explain:  true,
		TopK:     c.topK,
		Debug:    false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &apperrors.InferenceError{Msg: "failed to encode inference request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inferir", bytes.NewReader(body))
	if err != nil {
		return nil, &apperrors.InferenceError{Msg: "failed to build inference request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &apperrors.InferenceError{Msg: "inference call timed out", Timeout: true, Cause: err}
		}
		return nil, &apperrors.InferenceError{Msg: "inference service unreachable", Cause: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &apperrors.InferenceError{Msg: "failed to read inference response", Cause: err}
	}

	if res.StatusCode != http.StatusOK {
		return nil, &apperrors.InferenceError{
			Msg: fmt.Sprintf("inference service returned %d: %s", res.StatusCode, truncate(string(raw), 200)),
		}
	}

	var out InferResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &apperrors.InferenceError{Msg: "inference response is not valid JSON", Cause: err}
	}
	if out.PerfilClinico == "" {
		return nil, &apperrors.InferenceError{Msg: `inference response missing "perfil_clinico"`}
	}

	c.log.Debug("Inference call completed",
		zap.String("model_version", out.ModelVersion),
		zap.String("perfil_clinico", out.PerfilClinico),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &out, nil
}

// Health probes GET /health on the collaborator.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return &apperrors.InferenceError{Msg: "inference service unreachable", Cause: err}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return &apperrors.InferenceError{Msg: fmt.Sprintf("inference health returned %d", res.StatusCode)}
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
