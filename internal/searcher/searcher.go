package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/devlog-mcp/internal/embedder"
	"github.com/dshills/devlog-mcp/internal/index"
	"github.com/dshills/devlog-mcp/internal/storage"
	"github.com/dshills/devlog-mcp/pkg/types"
)

const (
	DefaultLimit    = 10
	MaxLimit        = 100
	DefaultCacheTTL = 1 * time.Hour
	queryCacheSize  = 1000
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	Mode     Mode
	Filters  *storage.SearchFilters
	UseCache bool
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Mode         Mode // Resolved mode, never auto
	Duration     time.Duration
	CacheHit     bool
	Degraded     bool // True when a hybrid strategy failed and was skipped
}

// cacheEntry is a cached response with its expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher routes queries to retrieval strategies and merges their results
type Searcher struct {
	store   storage.Storage
	emb     embedder.Embedder
	index   *index.Index
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a Searcher over the given store and embedder.
func NewSearcher(store storage.Storage, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](queryCacheSize)
	if err != nil {
		// Never happens with a positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		store: store,
		emb:   emb,
		index: index.New(store, emb),
		cache: cache,
	}
}

// Index exposes the underlying embedding index for maintenance operations.
func (s *Searcher) Index() *index.Index {
	return s.index
}

// Search is the single query entry point: router, then strategies, then
// merge. An empty query or an empty store yields an empty result list, not
// an error.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	mode := req.Mode
	if mode == ModeAuto {
		mode = Classify(req.Query)
	}

	if req.UseCache {
		if cached := s.checkCache(req, mode); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *SearchResponse
	var err error

	switch mode {
	case ModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	case ModeKeyword, ModeCode, ModeFunction, ModeSemantic:
		response, err = s.singleStrategy(ctx, req, mode)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", mode)
	}

	if err != nil {
		return nil, err
	}

	response.Mode = mode
	response.Duration = time.Since(startTime)

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, mode, response)
	}

	return response, nil
}

func (s *Searcher) runStrategy(ctx context.Context, req SearchRequest, mode Mode) ([]types.Candidate, error) {
	switch mode {
	case ModeKeyword:
		return s.keywordCandidates(ctx, req.Query, req.Filters, req.Limit)
	case ModeCode:
		return s.codeCandidates(ctx, req.Query, req.Filters, req.Limit)
	case ModeFunction:
		return s.functionCandidates(ctx, req.Query, req.Filters, req.Limit)
	case ModeSemantic:
		return s.semanticCandidates(ctx, req.Query, req.Limit)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", mode)
	}
}

// singleStrategy runs one routed strategy. A semantic provider failure
// degrades to an empty list so search stays usable without the model
// server; degenerate-vector errors are real errors and surface.
func (s *Searcher) singleStrategy(ctx context.Context, req SearchRequest, mode Mode) (*SearchResponse, error) {
	candidates, err := s.runStrategy(ctx, req, mode)
	degraded := false
	if err != nil {
		if mode != ModeSemantic || errors.Is(err, index.ErrZeroVector) {
			return nil, err
		}
		log.Printf("semantic search degraded: %v", err)
		candidates = nil
		degraded = true
	}

	results := Merge([][]types.Candidate{candidates}, req.Limit)
	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Degraded:     degraded,
	}, nil
}

// strategyResult carries one strategy's output across the collection channel
type strategyResult struct {
	mode       Mode
	candidates []types.Candidate
	err        error
}

// hybridSearch runs all four strategies concurrently. They are read-only
// and independent, so failures are tolerated as long as one succeeds;
// a failed semantic call just means degraded results.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	modes := []Mode{ModeKeyword, ModeCode, ModeFunction, ModeSemantic}
	resultChan := make(chan strategyResult, len(modes))

	for _, mode := range modes {
		go func() {
			candidates, err := s.runStrategy(ctx, req, mode)
			select {
			case resultChan <- strategyResult{mode: mode, candidates: candidates, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	lists := make([][]types.Candidate, 0, len(modes))
	var failures []error
	degraded := false

	for range modes {
		select {
		case res := <-resultChan:
			if res.err != nil {
				if errors.Is(res.err, index.ErrZeroVector) {
					return nil, res.err
				}
				log.Printf("%s strategy failed, continuing: %v", res.mode, res.err)
				failures = append(failures, res.err)
				degraded = true
				continue
			}
			lists = append(lists, res.candidates)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(failures) == len(modes) {
		return nil, fmt.Errorf("all strategies failed: %w", errors.Join(failures...))
	}

	results := Merge(lists, req.Limit)
	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Degraded:     degraded,
	}, nil
}

// validateRequest normalizes the request in place
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Mode == "" {
		req.Mode = ModeAuto
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = DefaultCacheTTL
	}
	return nil
}

func (s *Searcher) checkCache(req SearchRequest, mode Mode) *SearchResponse {
	hash := computeQueryHash(req, mode)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req SearchRequest, mode Mode, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req, mode), entry)
	s.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached entries are isolated from
// caller mutations.
func copyResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Mode:         src.Mode,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Degraded:     src.Degraded,
		Results:      make([]types.SearchResult, len(src.Results)),
	}

	for i, result := range src.Results {
		copied := result
		copied.Files = append([]types.FileMatch(nil), result.Files...)
		copied.Snippets = append([]string(nil), result.Snippets...)
		dst.Results[i] = copied
	}
	return dst
}

// computeQueryHash builds a deterministic cache key for a request
func computeQueryHash(req SearchRequest, mode Mode) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(mode))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d", req.Limit)

	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(req.Filters.RepoName)
		data.WriteString("|")
		data.WriteString(req.Filters.Language)
		data.WriteString("|")
		fmt.Fprintf(&data, "%d|%d", req.Filters.After.Unix(), req.Filters.Before.Unix())
	}

	return sha256.Sum256([]byte(data.String()))
}
