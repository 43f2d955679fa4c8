package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/koopa0/chatbot-rag/internal/log"
)

const (
	// defaultControlURL is the Pinecone control plane.
	defaultControlURL = "https://api.pinecone.io"

	// apiVersion pins the Pinecone REST API version header.
	apiVersion = "2025-04"

	// readyPollInterval is how often index readiness is re-checked after create.
	readyPollInterval = 2 * time.Second

	// readyTimeout bounds how long EnsureIndex waits for a new index.
	readyTimeout = 5 * time.Minute
)

// PineconeConfig configures the Pinecone client.
type PineconeConfig struct {
	APIKey string
	Cloud  string // e.g. "aws"
	Region string // e.g. "us-east-1"

	// ControlURL overrides the control plane endpoint (tests).
	ControlURL string

	// Timeout is the per-request HTTP timeout. Default 30s.
	Timeout time.Duration
}

// Pinecone is a REST client for a Pinecone serverless index with integrated
// embeddings. Safe for concurrent use; the data-plane host is resolved once
// by EnsureIndex and cached for the process lifetime.
type Pinecone struct {
	apiKey     string
	cloud      string
	region     string
	controlURL string
	client     *http.Client
	logger     log.Logger

	mu   sync.RWMutex
	host string // data plane host for the index, set by EnsureIndex
}

// NewPinecone creates a Pinecone index client.
func NewPinecone(cfg PineconeConfig, logger log.Logger) *Pinecone {
	controlURL := cfg.ControlURL
	if controlURL == "" {
		controlURL = defaultControlURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Pinecone{
		apiKey:     cfg.APIKey,
		cloud:      cfg.Cloud,
		region:     cfg.Region,
		controlURL: strings.TrimRight(controlURL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// indexDescription is the subset of the describe-index response we use.
type indexDescription struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// EnsureIndex checks whether the index exists and creates it with an
// integrated embedding model when it does not. It blocks until the index
// reports ready, because upserting against a non-ready index fails.
//
// The check-then-create sequence is not atomic: a concurrent caller may
// create the index first, so an "already exists" (409) response from create
// is treated as success.
func (p *Pinecone) EnsureIndex(ctx context.Context, name, embedModel string) error {
	desc, err := p.describeIndex(ctx, name)
	if err == nil {
		return p.awaitReady(ctx, name, desc)
	}
	if !isNotFound(err) {
		return fmt.Errorf("%w: describing index %q: %v", ErrProvision, name, err)
	}

	p.logger.Info("creating vector index", "index", name, "model", embedModel)

	createBody := map[string]any{
		"name":   name,
		"cloud":  p.cloud,
		"region": p.region,
		"embed": map[string]any{
			"model":     embedModel,
			"field_map": map[string]string{"text": "text"},
		},
	}
	var created indexDescription
	err = p.doJSON(ctx, http.MethodPost, p.controlURL+"/indexes/create-for-model", createBody, &created)
	if err != nil {
		if isConflict(err) {
			// Lost the create race; the index exists now.
			p.logger.Debug("index already exists", "index", name)
			created, err = p.describeIndex(ctx, name)
			if err != nil {
				return fmt.Errorf("%w: describing index after create race: %v", ErrProvision, err)
			}
		} else {
			return fmt.Errorf("%w: creating index %q: %v", ErrProvision, name, err)
		}
	}

	return p.awaitReady(ctx, name, created)
}

// awaitReady polls describe-index until the index is ready, then caches the
// data-plane host.
func (p *Pinecone) awaitReady(ctx context.Context, name string, desc indexDescription) error {
	deadline := time.Now().Add(readyTimeout)
	for !desc.Status.Ready {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: index %q not ready after %s", ErrProvision, name, readyTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrProvision, ctx.Err())
		case <-time.After(readyPollInterval):
		}

		var err error
		desc, err = p.describeIndex(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: polling index %q: %v", ErrProvision, name, err)
		}
	}

	p.mu.Lock()
	p.host = desc.Host
	p.mu.Unlock()
	return nil
}

func (p *Pinecone) describeIndex(ctx context.Context, name string) (indexDescription, error) {
	var desc indexDescription
	err := p.doJSON(ctx, http.MethodGet, p.controlURL+"/indexes/"+name, nil, &desc)
	return desc, err
}

// dataURL builds a data-plane URL for the resolved index host.
func (p *Pinecone) dataURL(path string) (string, error) {
	p.mu.RLock()
	host := p.host
	p.mu.RUnlock()
	if host == "" {
		return "", fmt.Errorf("index host not resolved; call EnsureIndex first")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/") + path, nil
}

// Upsert writes records with server-side embedding. The request body is
// NDJSON, one record per line, with ids supplied by the caller.
func (p *Pinecone) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	url, err := p.dataURL("/records/namespaces/" + namespace + "/upsert")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpsert, err)
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, r := range records {
		line := map[string]string{"_id": r.ID, "text": r.Text}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("%w: encoding record %q: %v", ErrUpsert, r.ID, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpsert, err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	p.setAuthHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpsert, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upsert returned %s", ErrUpsert, resp.Status)
	}

	p.logger.Debug("upserted records", "namespace", namespace, "count", len(records))
	return nil
}

// searchResponse is the subset of the search-records response we use.
type searchResponse struct {
	Result struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Fields map[string]any `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Search queries the namespace by text; the index embeds the query with the
// same model as the records. Hits come back closest-first.
func (p *Pinecone) Search(ctx context.Context, namespace, query string, topK int) ([]Hit, error) {
	url, err := p.dataURL("/records/namespaces/" + namespace + "/search")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}

	reqBody := map[string]any{
		"query": map[string]any{
			"top_k":  topK,
			"inputs": map[string]string{"text": query},
		},
		"fields": []string{"text"},
	}

	var resp searchResponse
	if err := p.doJSON(ctx, http.MethodPost, url, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}

	hits := make([]Hit, 0, len(resp.Result.Hits))
	for _, h := range resp.Result.Hits {
		text, _ := h.Fields["text"].(string)
		hits = append(hits, Hit{ID: h.ID, Text: text, Score: h.Score})
	}
	return hits, nil
}

// DeleteMany removes records by id from the namespace. Unknown ids and an
// unknown namespace are non-errors.
func (p *Pinecone) DeleteMany(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	url, err := p.dataURL("/vectors/delete")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}

	reqBody := map[string]any{"ids": ids, "namespace": namespace}
	if err := p.doJSON(ctx, http.MethodPost, url, reqBody, nil); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}

	p.logger.Debug("deleted records", "namespace", namespace, "count", len(ids))
	return nil
}

// httpStatusError carries the status code for errors.Is-style checks.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *httpStatusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func isConflict(err error) bool {
	var se *httpStatusError
	return errors.As(err, &se) && se.status == http.StatusConflict
}

func (p *Pinecone) setAuthHeaders(req *http.Request) {
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", apiVersion)
}

// doJSON performs a JSON request, decoding the response into out when non-nil.
// Non-2xx responses become *httpStatusError.
func (p *Pinecone) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	p.setAuthHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}
