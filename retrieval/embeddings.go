package retrieval

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Embedder produces vectors for texts and images in a shared embedding
// space, one vector per input.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImages(ctx context.Context, jpegs [][]byte) ([][]float32, error)
}

// CohereEmbedder implements Embedder using the Cohere Embed API (v2)
// with a multimodal model so that query text and library frames land in
// the same space.
type CohereEmbedder struct {
	client *cohereclient.Client
	model  string
}

// NewCohereEmbedder builds an embedder for the given model.
func NewCohereEmbedder(apiKey, model string) *CohereEmbedder {
	// Force HTTP/1.1 to avoid HTTP/2 protocol errors against the Cohere API
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereEmbedder{client: client, model: model}
}

func (c *CohereEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      cohere.EmbedInputTypeSearchQuery,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	}, len(texts))
}

func (c *CohereEmbedder) EmbedImages(ctx context.Context, jpegs [][]byte) ([][]float32, error) {
	if len(jpegs) == 0 {
		return nil, nil
	}
	uris := make([]string, len(jpegs))
	for i, data := range jpegs {
		uris[i] = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	}
	return c.embed(ctx, &cohere.V2EmbedRequest{
		Images:         uris,
		Model:          c.model,
		InputType:      cohere.EmbedInputTypeImage,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	}, len(jpegs))
}

func (c *CohereEmbedder) embed(ctx context.Context, req *cohere.V2EmbedRequest, want int) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := c.client.V2.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cohere embed error: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	floats := resp.Embeddings.Float
	if len(floats) != want {
		return nil, errors.New("embedding count mismatch")
	}

	out := make([][]float32, len(floats))
	for i, vec := range floats {
		fv := make([]float32, len(vec))
		for j, v := range vec {
			fv[j] = float32(v)
		}
		out[i] = fv
	}
	return out, nil
}
