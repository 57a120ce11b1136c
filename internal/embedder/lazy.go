package embedder

import (
	"context"
	"sync"
)

// Lazy defers provider construction until the first Embed call, then reuses
// the same instance for the life of the process. Concurrent first callers
// share a single initialization.
type Lazy struct {
	construct func() (Embedder, error)

	once sync.Once
	emb  Embedder
	err  error
}

// NewLazy wraps a constructor, typically NewFromEnv.
func NewLazy(construct func() (Embedder, error)) *Lazy {
	return &Lazy{construct: construct}
}

func (l *Lazy) get() (Embedder, error) {
	l.once.Do(func() {
		l.emb, l.err = l.construct()
	})
	return l.emb, l.err
}

func (l *Lazy) Embed(ctx context.Context, text string) (*Embedding, error) {
	emb, err := l.get()
	if err != nil {
		return nil, err
	}
	return emb.Embed(ctx, text)
}

func (l *Lazy) Dimension() int {
	emb, err := l.get()
	if err != nil {
		return 0
	}
	return emb.Dimension()
}

func (l *Lazy) Provider() string {
	emb, err := l.get()
	if err != nil {
		return ""
	}
	return emb.Provider()
}

func (l *Lazy) Model() string {
	emb, err := l.get()
	if err != nil {
		return ""
	}
	return emb.Model()
}

func (l *Lazy) Close() error {
	if l.emb != nil {
		return l.emb.Close()
	}
	return nil
}
