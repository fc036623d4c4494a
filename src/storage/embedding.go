package storage

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"travel_agent/src/model"

	"github.com/ollama/ollama/api"
	"github.com/philippgille/chromem-go"
)

const defaultDimensions = 256

// NewEmbeddingFunc picks the embedder named by the store configuration
func NewEmbeddingFunc(config model.StoreConfig) (chromem.EmbeddingFunc, error) {
	switch config.Embedder {
	case "", "local":
		return LexicalEmbedding(defaultDimensions), nil
	case "ollama":
		base, err := url.Parse(config.OllamaURL)
		if err != nil {
			return nil, &model.ValidationError{Field: "STORE_OLLAMA_URL", Value: config.OllamaURL, Reason: err.Error()}
		}
		return OllamaEmbedding(api.NewClient(base, http.DefaultClient), config.EmbedModel), nil
	}
	return nil, &model.ValidationError{Field: "STORE_EMBEDDER", Value: config.Embedder, Reason: "expected local or ollama"}
}

// OllamaEmbedding embeds text with a local Ollama embedding model
func OllamaEmbedding(client *api.Client, modelName string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.Embed(ctx, &api.EmbedRequest{Model: modelName, Input: text})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
			return nil, errors.New("ollama embed: empty embedding")
		}
		return resp.Embeddings[0], nil
	}
}

// LexicalEmbedding is an offline embedder: a hashed bag of lower-cased word
// stems, L2-normalised. Texts sharing words land close together.
func LexicalEmbedding(dims int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			h.Write([]byte(stem(w)))
			vec[h.Sum32()%uint32(dims)] += 1
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
		return vec, nil
	}
}

func stem(w string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if len(w) > len(suffix)+2 && strings.HasSuffix(w, suffix) {
			return strings.TrimSuffix(w, suffix)
		}
	}
	return w
}
