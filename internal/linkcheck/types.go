// Package linkcheck verifies external references with a bounded worker pool,
// a persisted result cache, per-attempt timeouts and retries with backoff.
package linkcheck

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"docxref/internal/corpus"
)

// Class is how a single check attempt ended.
type Class int

const (
	ClassOK         Class = iota // Target answered successfully
	ClassDefinitive              // Client error or malformed target; never retried
	ClassTransient               // Server error or network failure; retried
	ClassTimeout                 // Attempt exceeded its deadline; retried
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassDefinitive:
		return "definitive"
	case ClassTransient:
		return "transient"
	case ClassTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Outcome is the result of one attempt.
type Outcome struct {
	Class      Class
	StatusCode int            // HTTP status, 0 when no response arrived
	Err        error          // Transport error, if any
	Response   *http.Response // Final response with its body closed; used for Retry-After
}

// Describe renders the attempt for the retry history in a result's detail.
func (o Outcome) Describe() string {
	switch {
	case o.Class == ClassTimeout:
		return "timeout"
	case o.StatusCode != 0:
		return fmt.Sprintf("%d %s", o.StatusCode, http.StatusText(o.StatusCode))
	case o.Err != nil:
		return o.Err.Error()
	default:
		return o.Class.String()
	}
}

// Checker performs a single check attempt against target. Implementations
// must honor ctx: it carries the per-attempt deadline and run cancellation.
type Checker interface {
	Check(ctx context.Context, target *url.URL) Outcome
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, target *url.URL) Outcome

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, target *url.URL) Outcome {
	return f(ctx, target)
}

// ErrIncomplete is returned by PutIfComplete for results without a final verdict.
var ErrIncomplete = stderrors.New("linkcheck: result is incomplete")

// Cache persists the last result per target across runs. Keys are exact target
// strings. PutIfComplete must write each entry atomically: a reader sees either
// the previous result or the new one, never a mix.
type Cache interface {
	Get(key string) (corpus.ValidationResult, bool, error)
	PutIfComplete(key string, value corpus.ValidationResult) error
}

// MemoryCache is an in-process Cache. Each key is stored independently, so
// writes for one target never wait on another.
type MemoryCache struct {
	entries sync.Map // string -> corpus.ValidationResult
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get returns the stored result for key.
func (c *MemoryCache) Get(key string) (corpus.ValidationResult, bool, error) {
	v, ok := c.entries.Load(key)
	if !ok {
		return corpus.ValidationResult{}, false, nil
	}
	return v.(corpus.ValidationResult), true, nil
}

// PutIfComplete stores value under key if it carries a final verdict.
func (c *MemoryCache) PutIfComplete(key string, value corpus.ValidationResult) error {
	if !value.Complete() {
		return ErrIncomplete
	}
	c.entries.Store(key, value)
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
