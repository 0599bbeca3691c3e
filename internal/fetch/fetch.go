// Package fetch runs a remote GET through an observable lifecycle:
// idle, loading, then either success or error. Each fetcher is bound to one
// URL and option set and can be re-triggered with Refetch.
//
// Overlapping calls do not race: every call supersedes the one before it,
// cancelling its request, and a superseded call never writes state.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// ErrSuperseded is returned by a call whose request was replaced by a newer
// Fetch or Refetch before it settled.
var ErrSuperseded = errors.New("fetch: superseded by a newer request")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options describes the request. The zero value is a plain GET.
type Options struct {
	Method string
	Header http.Header
	Body   []byte
}

// Outcome labels how a call ended, for metrics.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeError      Outcome = "error"
	OutcomeSuperseded Outcome = "superseded"
)

type settings struct {
	logger  *slog.Logger
	observe func(url string, outcome Outcome)
}

// Option customizes a Fetcher.
type Option func(*settings)

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per call with its outcome.
func WithObserver(observe func(url string, outcome Outcome)) Option {
	return func(s *settings) {
		s.observe = observe
	}
}

// Fetcher performs one kind of request and tracks its State.
type Fetcher[T any] struct {
	client   Doer
	url      string
	opts     Options
	settings settings

	mu        sync.Mutex
	state     State[T]
	gen       uint64
	cancel    context.CancelFunc
	listeners []func(State[T])
}

// New constructs an idle Fetcher. A nil client means http.DefaultClient.
func New[T any](client Doer, url string, opts Options, options ...Option) *Fetcher[T] {
	if client == nil {
		client = http.DefaultClient
	}
	s := settings{logger: slog.Default()}
	for _, option := range options {
		option(&s)
	}
	return &Fetcher[T]{
		client:   client,
		url:      url,
		opts:     opts,
		settings: s,
	}
}

// URL returns the URL the fetcher is bound to.
func (f *Fetcher[T]) URL() string {
	return f.url
}

// State returns the current state.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// OnChange registers fn to receive every state transition in order. fn runs
// with the fetcher's lock held and must not call back into the fetcher.
func (f *Fetcher[T]) OnChange(fn func(State[T])) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listeners = append(f.listeners, fn)
}

// Fetch issues the request and waits for it to settle. Any call still in
// flight is cancelled and returns ErrSuperseded.
func (f *Fetcher[T]) Fetch(ctx context.Context) (T, error) {
	var zero T

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	reqCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.transition(f.state.Started())
	f.mu.Unlock()
	defer cancel()

	f.settings.logger.Debug("fetching", slog.String("url", f.url))
	data, err := f.do(reqCtx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		f.observe(OutcomeSuperseded)
		return zero, ErrSuperseded
	}
	f.cancel = nil

	if err != nil {
		f.settings.logger.Warn("fetch failed", slog.String("url", f.url), slog.String("error", err.Error()))
		f.transition(f.state.Failed(err))
		f.observe(OutcomeError)
		return zero, err
	}
	f.transition(f.state.Succeeded(data))
	f.observe(OutcomeSuccess)
	return data, nil
}

// Refetch repeats the request with the same URL and options.
func (f *Fetcher[T]) Refetch(ctx context.Context) (T, error) {
	return f.Fetch(ctx)
}

func (f *Fetcher[T]) transition(next State[T]) {
	f.state = next
	for _, fn := range f.listeners {
		fn(next)
	}
}

func (f *Fetcher[T]) observe(outcome Outcome) {
	if f.settings.observe != nil {
		f.settings.observe(f.url, outcome)
	}
}

func (f *Fetcher[T]) do(ctx context.Context) (T, error) {
	var out T

	method := f.opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if f.opts.Body != nil {
		body = bytes.NewReader(f.opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.url, body)
	if err != nil {
		return out, fmt.Errorf("fetch: build request: %w", err)
	}
	for key, values := range f.opts.Header {
		req.Header[key] = append([]string(nil), values...)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return out, &StatusError{StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("fetch: decode response: %w", err)
	}
	return out, nil
}
