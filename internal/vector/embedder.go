package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

const embedTimeout = 30 * time.Second

// postJSON sends one JSON request and decodes the response into out.
// Non-2xx responses surface the (truncated) body, which is where both
// embedding APIs put their error message.
func postJSON(ctx context.Context, client *http.Client, url, bearer string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// --- Ollama provider ---

// ollamaDims maps known embedding models to their vector width.
var ollamaDims = map[string]int{
	"nomic-embed-text":  768,
	"all-minilm":        384,
	"mxbai-embed-large": 1024,
}

// OllamaEmbedder talks to a local Ollama server.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewOllamaEmbedder embeds through the Ollama server named by
// OLLAMA_HOST (default http://localhost:11434). Models outside
// ollamaDims are assumed to be nomic-embed-text sized.
func NewOllamaEmbedder(model string) *OllamaEmbedder {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	dims, ok := ollamaDims[model]
	if !ok {
		dims = ollamaDims["nomic-embed-text"]
	}
	return &OllamaEmbedder{
		baseURL: host,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: embedTimeout},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	in := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{e.model, text}
	var out struct {
		Embedding Vector `json:"embedding"`
	}
	if err := postJSON(ctx, e.client, e.baseURL+"/api/embeddings", "", in, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: model %s returned no embedding", e.model)
	}
	return out.Embedding, nil
}

func (e *OllamaEmbedder) Dims() int { return e.dims }

// --- OpenAI-compatible provider ---

// OpenAIEmbedder works against the OpenAI embeddings endpoint or any
// server that mimics it.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

// NewOpenAIEmbedder embeds through an OpenAI-compatible API. Zero
// values select api.openai.com, text-embedding-3-small and its 1536
// dims.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: embedTimeout},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	in := struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}{text, e.model}
	var out struct {
		Data []struct {
			Embedding Vector `json:"embedding"`
		} `json:"data"`
	}
	if err := postJSON(ctx, e.client, e.baseURL+"/embeddings", e.apiKey, in, &out); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai embed: response carried no embedding")
	}
	return out.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

// --- Hash provider ---

const hashDims = 384

// HashEmbedder derives a deterministic pseudo-embedding from the FNV
// hash of the text. Identical inputs always map to the same unit
// vector, which is all the offline default and the tests need. It has
// no semantic signal.
type HashEmbedder struct{}

func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

func (HashEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	emb := make(Vector, hashDims)
	for i := range emb {
		seed = seed*6364136223846793005 + 1442695040888963407
		emb[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(emb), nil
}

func (HashEmbedder) Dims() int { return hashDims }

func normalize(vec Vector) Vector {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make(Vector, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

// --- Factory ---

// NewFromEnv creates an embedder from environment variables.
// TIERMEM_EMBED_PROVIDER: "ollama" | "openai" | "hash" | "" (disabled)
// TIERMEM_EMBED_MODEL: model name
// TIERMEM_EMBED_URL: base URL override
// OPENAI_API_KEY: for the openai provider
func NewFromEnv() Embedder {
	provider := os.Getenv("TIERMEM_EMBED_PROVIDER")
	model := os.Getenv("TIERMEM_EMBED_MODEL")

	switch provider {
	case "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model)
	case "openai":
		url := os.Getenv("TIERMEM_EMBED_URL")
		key := os.Getenv("OPENAI_API_KEY")
		return NewOpenAIEmbedder(url, key, model, 0)
	case "hash":
		return NewHashEmbedder()
	default:
		return nil // semantic layer disabled
	}
}
