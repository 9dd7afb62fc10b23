package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/issuelens/issuelens/internal/oputil"
)

// DefaultOllamaEndpoint is where a local Ollama server listens.
const DefaultOllamaEndpoint = "http://localhost:11434"

// OllamaEngine embeds text through an Ollama-compatible /api/embed endpoint.
// When the server does not have the model yet, it is pulled once and the
// embed request retried.
type OllamaEngine struct {
	endpoint string
	model    string
	client   *http.Client
	puller   *http.Client

	mu   sync.Mutex
	dims int

	// pullFirst forces the one-time pull before the first embed request,
	// set when no local snapshot of the model was found.
	pullFirst bool
	pullOnce  sync.Once
	pullErr   error
}

// NewOllama builds an engine for the given endpoint and model. dims is the
// model's vector width; it is verified against the first response.
func NewOllama(endpoint, model string, dims int) *OllamaEngine {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	return &OllamaEngine{
		endpoint: endpoint,
		model:    model,
		dims:     dims,
		client:   &http.Client{Timeout: 120 * time.Second},
		puller:   &http.Client{Timeout: 30 * time.Minute},
	}
}

func (e *OllamaEngine) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

func (e *OllamaEngine) Name() string { return e.model }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Encode embeds all texts in one request. A missing model triggers a single
// pull, after which the request is retried once.
func (e *OllamaEngine) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.pullFirst {
		if err := e.ensureModel(ctx); err != nil {
			return nil, err
		}
	}
	parsed, status, err := e.embed(ctx, texts)
	if err != nil && status == http.StatusNotFound {
		if perr := e.ensureModel(ctx); perr != nil {
			return nil, perr
		}
		parsed, _, err = e.embed(ctx, texts)
	}
	if err != nil {
		return nil, err
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, oputil.New(oputil.KindInputMalformed,
			"embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Embeddings))
	}

	e.mu.Lock()
	if e.dims == 0 && len(parsed.Embeddings) > 0 {
		e.dims = len(parsed.Embeddings[0])
	}
	dims := e.dims
	e.mu.Unlock()

	for i, v := range parsed.Embeddings {
		if len(v) != dims {
			return nil, oputil.New(oputil.KindInputMalformed,
				"vector %d has width %d, want %d", i, len(v), dims)
		}
	}
	return parsed.Embeddings, nil
}

func (e *OllamaEngine) embed(ctx context.Context, texts []string) (*embedResponse, int, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, oputil.Wrap(err, oputil.KindAPITransient, "embedding request to %s", e.endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, oputil.New(oputil.KindAPITransient,
			"embedding endpoint returned %d: %s", resp.StatusCode, msg).
			WithSuggestion(fmt.Sprintf("check that an embedding server is running at %s and the model %q is pulled", e.endpoint, e.model))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, oputil.Wrap(err, oputil.KindInputMalformed, "decode embedding response")
	}
	return &parsed, resp.StatusCode, nil
}

// ensureModel downloads the model through /api/pull. The pull runs at most
// once per engine; later calls return the recorded outcome.
func (e *OllamaEngine) ensureModel(ctx context.Context) error {
	e.pullOnce.Do(func() {
		body, err := json.Marshal(pullRequest{Model: e.model, Stream: false})
		if err != nil {
			e.pullErr = err
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/pull", bytes.NewReader(body))
		if err != nil {
			e.pullErr = err
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.puller.Do(req)
		if err != nil {
			e.pullErr = oputil.Wrap(err, oputil.KindAPITransient, "pull model %s from %s", e.model, e.endpoint)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			e.pullErr = oputil.New(oputil.KindAPITransient, "model pull returned %d: %s", resp.StatusCode, msg).
				WithSuggestion(fmt.Sprintf("pull the model manually: ollama pull %s", e.model))
		}
	})
	return e.pullErr
}
