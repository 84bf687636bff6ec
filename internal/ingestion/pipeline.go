// Package ingestion implements the knowledge base ingestion pipeline.
// It fetches policy and handbook documents, chunks the content, embeds each
// chunk, and upserts the results into the chunk store.
// This pipeline is invoked by the `calai ingest` CLI command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/54b3r/calai-go/internal/rag"
)

// Source describes a knowledge document to be ingested.
type Source struct {
	// Location is the HTTP(S) URL or local file path of the document.
	Location string

	// Category classifies the document (policy, handbook, faq, guide,
	// reference). Empty means it is inferred from the location.
	Category string
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive chunks.
	// Defaults to 100 if zero.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each document fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the fetch → chunk → embed → upsert flow for a set
// of knowledge documents.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.ChunkStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching remote documents.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.ChunkStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "calai-go/1.0 (knowledge base ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest fetches, chunks, embeds, and stores all provided sources.
// It processes sources sequentially and returns the first error encountered.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, src := range sources {
		progress(fmt.Sprintf("fetching %s", src.Location))

		content, err := p.fetch(ctx, src.Location)
		if err != nil {
			return fmt.Errorf("ingestion: fetch failed for %s: %w", src.Location, err)
		}

		pieces := p.chunk(content)
		progress(fmt.Sprintf("chunked %s into %d chunks", src.Location, len(pieces)))

		embeddings, err := p.embedder.Embed(ctx, pieces)
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed for %s: %w", src.Location, err)
		}
		if len(embeddings) != len(pieces) {
			return fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(pieces))
		}

		chunks := make([]rag.Chunk, 0, len(pieces))
		for i, text := range pieces {
			chunks = append(chunks, rag.Chunk{
				ID:        chunkID(src.Location, i),
				Text:      text,
				Embedding: embeddings[i],
				SourceRef: src.Location,
			})
		}

		if err := p.store.Upsert(ctx, chunks); err != nil {
			return fmt.Errorf("ingestion: upsert failed for %s: %w", src.Location, err)
		}

		progress(fmt.Sprintf("ingested %d chunks from %s", len(pieces), src.Location))
	}

	return nil
}

// fetch retrieves the raw text content of a source. HTTP(S) locations are
// fetched over the network; anything else is read as a local file.
func (p *Pipeline) fetch(ctx context.Context, location string) (string, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		return string(data), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, location)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// chunkID generates a deterministic ID for a chunk based on its source
// location and chunk index, so re-ingesting a document updates in place.
func chunkID(location string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", location, index)))
	return fmt.Sprintf("%x", h[:16])
}
