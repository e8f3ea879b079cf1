// Package caseindex maintains an embedded vector index over case records
// for similarity search, backed by chromem-go. The index is in-memory by
// default; a path makes it persistent.
package caseindex

import (
	"context"
	"encoding/json"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
)

// excerptLimit bounds the indexed text for records without a summary.
const excerptLimit = 1000

// Config holds index settings.
type Config struct {
	// Path is the persistence directory; empty keeps the index in memory.
	Path string `json:"path"`

	// Collection is the collection name, "cases" when empty.
	Collection string `json:"collection"`
}

// Result is one search hit.
type Result struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Index is a vector index over case records.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	logger     *zap.Logger
}

// New creates an Index with the given embedder.
func New(cfg Config, embedder Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Collection
	if name == "" {
		name = "cases"
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("creating persistent index at %s: %w", cfg.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(name, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	logger.Debug("case index ready",
		zap.String("collection", name),
		zap.Bool("persistent", cfg.Path != ""),
	)

	return &Index{
		db:         db,
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Add indexes the given records and returns how many were added. Every
// record needs an id.
func (ix *Index) Add(ctx context.Context, records []casedata.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	texts := make([]string, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		id := rec.ID()
		if id == "" {
			return 0, fmt.Errorf("record %d has no id", i)
		}
		ids[i] = id
		texts[i] = indexContent(rec)
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding case records: %w", err)
	}

	docs := make([]chromem.Document, len(records))
	for i := range records {
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   texts[i],
			Metadata:  map[string]string{"case_id": ids[i]},
			Embedding: vectors[i],
		}
	}

	// Concurrency 1: the embeddings are already computed.
	if err := ix.collection.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("adding case documents: %w", err)
	}

	ix.logger.Debug("indexed case records", zap.Int("count", len(docs)))
	return len(docs), nil
}

// Search returns up to k records ranked by similarity to the query.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// chromem rejects k above the document count.
	count := ix.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	hits, err := ix.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying case index: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{ID: h.ID, Content: h.Content, Score: h.Similarity}
	}
	return results, nil
}

// Count returns how many records the index holds.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

// indexContent picks the text to embed for a record: the case summary when
// present, then the counseling reason, then a serialized excerpt.
func indexContent(rec casedata.Record) string {
	form, _ := rec["intake_form"].(map[string]any)
	if form != nil {
		if summary, ok := form["case_summary"].(string); ok && summary != "" {
			return summary
		}
		if reason, ok := form["reason_for_seeking_counseling"].(string); ok && reason != "" {
			return reason
		}
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return rec.ID()
	}
	excerpt := string(raw)
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}
	return excerpt
}
