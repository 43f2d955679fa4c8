package index

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Index used by tests and local runs. Scoring is a
// deterministic token-overlap ratio rather than a real embedding distance;
// it preserves the interface semantics that matter to callers: upsert
// overwrites by id, hits are ordered best-first, deletes ignore unknown ids.
type Memory struct {
	mu      sync.RWMutex
	ensured map[string]string            // index name -> embed model
	records map[string]map[string]string // namespace -> id -> text
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		ensured: make(map[string]string),
		records: make(map[string]map[string]string),
	}
}

// EnsureIndex records the index name; creating twice is a no-op.
func (m *Memory) EnsureIndex(_ context.Context, name, embedModel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ensured[name]; !ok {
		m.ensured[name] = embedModel
	}
	return nil
}

// Upsert stores records, overwriting any existing record with the same id.
func (m *Memory) Upsert(_ context.Context, namespace string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.records[namespace]
	if !ok {
		ns = make(map[string]string)
		m.records[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r.Text
	}
	return nil
}

// Search scores every record by token overlap with the query and returns the
// topK best, highest score first. Ties break by id for determinism.
func (m *Memory) Search(_ context.Context, namespace, query string, topK int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queryTokens := tokenize(query)
	hits := make([]Hit, 0, len(m.records[namespace]))
	for id, text := range m.records[namespace] {
		hits = append(hits, Hit{ID: id, Text: text, Score: overlapScore(queryTokens, tokenize(text))})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteMany removes records by id; missing ids are ignored.
func (m *Memory) DeleteMany(_ context.Context, namespace string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.records[namespace]
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

// Len reports the number of records in a namespace. Test helper.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[namespace])
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// overlapScore is |query ∩ text| / |query|, in [0, 1].
func overlapScore(query, text map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for tok := range query {
		if _, ok := text[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
