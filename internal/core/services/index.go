package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
	"github.com/ledgerwise/ledgerwise-core/internal/runtime"
)

const tracerName = "github.com/ledgerwise/ledgerwise-core/internal/core/services"

// Ensure IndexManager implements IndexService
var _ driving.IndexService = (*IndexManager)(nil)

// IndexConfig holds configuration for the index manager
type IndexConfig struct {
	RecordLimit      int           // records fetched per kind, default 100
	EmbedBatchSize   int           // texts per Embed call, default 64
	EmbedConcurrency int           // concurrent Embed calls per build, default 4
	CacheSize        int           // cached user indexes, 0 = unbounded
	CacheTTL         time.Duration // 0 = never expire
	BuildTimeout     time.Duration // default 2m
	Logger           *slog.Logger
}

// DefaultIndexConfig returns sensible defaults
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		RecordLimit:      domain.DefaultRecordLimit,
		EmbedBatchSize:   64,
		EmbedConcurrency: 4,
		CacheSize:        1000,
		CacheTTL:         time.Hour,
		BuildTimeout:     2 * time.Minute,
	}
}

// VectorIndex holds the embedded documents of exactly one user.
// It is never mutated after construction.
type VectorIndex struct {
	userID    string
	documents []domain.Document
	vectors   [][]float32
	norms     []float64
	dims      int
	builtAt   time.Time
}

func newVectorIndex(userID string, docs []domain.Document, vectors [][]float32) *VectorIndex {
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = norm(v)
	}
	var dims int
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	return &VectorIndex{
		userID:    userID,
		documents: docs,
		vectors:   vectors,
		norms:     norms,
		dims:      dims,
		builtAt:   time.Now(),
	}
}

// UserID returns the owner of the index
func (v *VectorIndex) UserID() string { return v.userID }

// Len returns the number of indexed documents
func (v *VectorIndex) Len() int { return len(v.documents) }

// Dimensions returns the length of the indexed vectors, 0 when empty
func (v *VectorIndex) Dimensions() int { return v.dims }

// BuiltAt returns when the index was built
func (v *VectorIndex) BuiltAt() time.Time { return v.builtAt }

// Documents returns a copy of the indexed documents in insertion order
func (v *VectorIndex) Documents() []domain.Document {
	return append([]domain.Document(nil), v.documents...)
}

// Search ranks documents by cosine similarity to query and returns at most
// k of them. Equal scores keep insertion order.
func (v *VectorIndex) Search(query []float32, k int) []domain.ScoredDocument {
	if k <= 0 || len(v.documents) == 0 {
		return []domain.ScoredDocument{}
	}

	qn := norm(query)
	hits := make([]domain.ScoredDocument, len(v.documents))
	for i, doc := range v.documents {
		hits[i] = domain.ScoredDocument{
			Document: doc,
			Score:    cosine(query, qn, v.vectors[i], v.norms[i]),
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine is 0 for vectors of different length or zero norm
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

// buildCall is one in-flight build. Waiters block on done, then read
// index and err.
type buildCall struct {
	seq   uint64
	done  chan struct{}
	index *VectorIndex
	err   error
}

// IndexManager owns the per-user vector indexes. It builds an index on
// first use, shares one in-flight build between concurrent callers for the
// same user, and caches results in a bounded, expiring LRU.
type IndexManager struct {
	records  driven.RecordSource
	services *runtime.Services
	builder  *DocumentBuilder
	cache    *expirable.LRU[string, *VectorIndex]
	config   IndexConfig
	logger   *slog.Logger
	tracer   trace.Tracer

	mu       sync.Mutex
	inflight map[string]*buildCall
	seq      uint64
}

// NewIndexManager creates a new IndexManager.
// The embedding service is read from services on every build.
func NewIndexManager(
	records driven.RecordSource,
	services *runtime.Services,
	builder *DocumentBuilder,
	cfg IndexConfig,
) *IndexManager {
	def := DefaultIndexConfig()
	if cfg.RecordLimit <= 0 {
		cfg.RecordLimit = def.RecordLimit
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = def.EmbedBatchSize
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = def.EmbedConcurrency
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = def.BuildTimeout
	}
	if cfg.CacheSize < 0 {
		cfg.CacheSize = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &IndexManager{
		records:  records,
		services: services,
		builder:  builder,
		config:   cfg,
		logger:   logger.With("component", "index_manager"),
		tracer:   otel.Tracer(tracerName),
		inflight: make(map[string]*buildCall),
	}
	m.cache = expirable.NewLRU[string, *VectorIndex](cfg.CacheSize, m.onEvict, cfg.CacheTTL)
	return m
}

func (m *IndexManager) onEvict(userID string, idx *VectorIndex) {
	m.logger.Debug("index evicted", "user_id", userID, "documents", idx.Len())
}

// GetOrBuild returns the cached index for userID, building it if absent.
// Concurrent callers for the same user share a single build. The build
// itself is detached from ctx so one caller giving up does not fail the
// others; ctx only bounds how long this caller waits.
func (m *IndexManager) GetOrBuild(ctx context.Context, userID string) (*VectorIndex, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	if idx, ok := m.cache.Get(userID); ok {
		return idx, nil
	}

	m.mu.Lock()
	if idx, ok := m.cache.Peek(userID); ok {
		m.mu.Unlock()
		return idx, nil
	}
	call, ok := m.inflight[userID]
	if !ok {
		call = m.launchLocked(ctx, userID)
	}
	m.mu.Unlock()

	return m.wait(ctx, call)
}

// Warm builds userID's index if needed and returns its document count
func (m *IndexManager) Warm(ctx context.Context, userID string) (int, error) {
	idx, err := m.GetOrBuild(ctx, userID)
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}

// Retrieve returns at most k documents ranked by similarity to query.
// An index with no documents yields an empty result without calling the
// embedding gateway.
func (m *IndexManager) Retrieve(ctx context.Context, userID, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidInput)
	}

	ctx, span := m.tracer.Start(ctx, "index.retrieve", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("retrieve.k", k),
	))
	defer span.End()

	idx, err := m.GetOrBuild(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index unavailable")
		return nil, err
	}
	if idx.Len() == 0 {
		return []domain.ScoredDocument{}, nil
	}

	embedder, err := m.services.RequireEmbedding()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, err)
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalUnavailable, err)
	}
	if len(vector) != idx.Dimensions() {
		// the embedding model changed since the build; the next turn rebuilds
		m.Evict(userID)
		err := fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrRetrievalUnavailable, len(vector), idx.Dimensions())
		span.RecordError(err)
		span.SetStatus(codes.Error, "dimension mismatch")
		m.logger.Warn("query dimension mismatch", "user_id", userID, "error", err)
		return nil, err
	}

	hits := idx.Search(vector, k)
	span.SetAttributes(attribute.Int("retrieve.hits", len(hits)))
	return hits, nil
}

// Refresh rebuilds userID's index from current records. It waits for a build
// that started after the call, never reusing one already running, so changes
// made before Refresh are reflected. On failure the previous index, if any,
// stays cached.
func (m *IndexManager) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}

	m.mu.Lock()
	after := m.seq
	m.mu.Unlock()

	for {
		m.mu.Lock()
		call, ok := m.inflight[userID]
		if !ok {
			call = m.launchLocked(ctx, userID)
		}
		m.mu.Unlock()

		_, err := m.wait(ctx, call)
		if call.seq > after {
			if err == nil {
				m.logger.Info("index refreshed", "user_id", userID)
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, ctxErr)
		}
	}
}

// Evict drops userID's cached index
func (m *IndexManager) Evict(userID string) {
	m.cache.Remove(userID)
}

// Stats reports cache occupancy
func (m *IndexManager) Stats() domain.IndexStats {
	m.mu.Lock()
	inflight := len(m.inflight)
	m.mu.Unlock()
	return domain.IndexStats{
		CachedUsers:    m.cache.Len(),
		InFlightBuilds: inflight,
	}
}

// launchLocked registers and starts a build. m.mu must be held.
func (m *IndexManager) launchLocked(ctx context.Context, userID string) *buildCall {
	m.seq++
	call := &buildCall{seq: m.seq, done: make(chan struct{})}
	m.inflight[userID] = call

	buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.BuildTimeout)
	go func() {
		defer cancel()
		idx, err := m.build(buildCtx, userID)
		if err == nil {
			m.cache.Add(userID, idx)
		}

		m.mu.Lock()
		if m.inflight[userID] == call {
			delete(m.inflight, userID)
		}
		m.mu.Unlock()

		call.index, call.err = idx, err
		close(call.done)
	}()
	return call
}

func (m *IndexManager) wait(ctx context.Context, call *buildCall) (*VectorIndex, error) {
	select {
	case <-call.done:
		return call.index, call.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for index: %w", domain.ErrRetrievalUnavailable, ctx.Err())
	}
}

// build fetches, renders, chunks and embeds a user's records.
// Any failure aborts the build; nothing partial is returned.
func (m *IndexManager) build(ctx context.Context, userID string) (*VectorIndex, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "index.build", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	fail := func(stage string, err error) (*VectorIndex, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		m.logger.Warn("index build failed", "user_id", userID, "stage", stage, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRetrievalUnavailable, stage, err)
	}

	records, err := m.records.FetchUserRecords(ctx, userID, m.config.RecordLimit)
	if err != nil {
		return fail("fetch records", err)
	}
	if records == nil {
		records = &domain.UserRecordSet{UserID: userID}
	}

	docs := m.builder.BuildDocuments(records)
	span.SetAttributes(
		attribute.Int("index.records", records.RecordCount()),
		attribute.Int("index.documents", len(docs)),
	)
	if len(docs) == 0 {
		m.logger.Info("index built", "user_id", userID, "documents", 0, "duration", time.Since(start))
		return newVectorIndex(userID, docs, nil), nil
	}

	embedder, err := m.services.RequireEmbedding()
	if err != nil {
		return fail("embedding service", err)
	}

	vectors, err := m.embedDocuments(ctx, embedder, docs)
	if err != nil {
		return fail("embed documents", err)
	}

	m.logger.Info("index built",
		"user_id", userID,
		"records", records.RecordCount(),
		"documents", len(docs),
		"duration", time.Since(start),
	)
	return newVectorIndex(userID, docs, vectors), nil
}

// embedDocuments embeds docs in batches, running up to EmbedConcurrency
// batches at once. Vectors come back in document order.
func (m *IndexManager) embedDocuments(ctx context.Context, embedder driven.EmbeddingService, docs []domain.Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	size := m.config.EmbedBatchSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.EmbedConcurrency)

	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, d := range docs[start:end] {
				texts = append(texts, d.Content)
			}
			batch, err := embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(batch), len(texts))
			}

			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), len(vectors[0]))
		}
	}
	return vectors, nil
}
