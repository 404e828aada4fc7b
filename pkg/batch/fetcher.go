// Package batch provides parallel fetching for sets of resource IDs.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches. The
	// gateway's admission control still bounds the upstream rate, so
	// extra workers only deepen the limiter queue.
	MaxConcurrency int
	// Timeout per single fetch
	Timeout time.Duration
	// BufferSize for the work and result channels
	BufferSize int
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
		BufferSize:     64,
	}
}

// Source fetches the payload for a single resource ID. The gateway's
// Fetch wrapped in a SourceFunc is the usual implementation.
type Source interface {
	FetchByID(ctx context.Context, id string) ([]byte, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, id string) ([]byte, error)

// FetchByID calls f(ctx, id).
func (f SourceFunc) FetchByID(ctx context.Context, id string) ([]byte, error) {
	return f(ctx, id)
}

// Result represents the outcome of fetching a single ID
type Result struct {
	ID   string
	Data []byte
	Err  error
}

// Fetcher handles parallel fetching of many IDs through a worker pool
type Fetcher struct {
	source Source
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new batch fetcher
func NewFetcher(source Source, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}

	return &Fetcher{
		source: source,
		config: config,
		logger: log.With().Str("component", "batch").Logger(),
	}
}

// FetchAll fetches every ID in parallel using a worker pool.
// Returns a map of id -> data for every ID that succeeded. When a fetch
// fails its worker stops and the partial map comes back together with
// the first error, so callers can keep what succeeded.
func (f *Fetcher) FetchAll(ctx context.Context, ids []string) (map[string][]byte, error) {
	start := time.Now()

	// Duplicate IDs would race each other for the same map slot and
	// inflate progress counts, so each ID goes into the queue once.
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	results := make(map[string][]byte, len(unique))
	if len(unique) == 0 {
		return results, nil
	}

	f.logger.Info().
		Int("ids", len(unique)).
		Int("workers", f.config.MaxConcurrency).
		Msg("Starting parallel batch fetch")

	queue := make(chan string, f.config.BufferSize)
	fetched := make(chan Result, f.config.BufferSize)
	errs := make(chan error, f.config.MaxConcurrency)

	// The filler selects on ctx so it never leaks when workers bail out
	// early and stop draining the queue.
	go func() {
		defer close(queue)
		for _, id := range unique {
			select {
			case queue <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < f.config.MaxConcurrency; i++ {
		wg.Add(1)
		go f.worker(ctx, queue, fetched, errs, &wg, i)
	}

	go func() {
		wg.Wait()
		close(fetched)
		close(errs)
	}()

	for result := range fetched {
		results[result.ID] = result.Data

		// Progress logging every 50 IDs
		if len(results)%50 == 0 {
			f.logger.Info().
				Int("fetched", len(results)).
				Int("total", len(unique)).
				Msg("Batch fetch progress")
		}
	}

	// The first worker error aborts the run; everything fetched before
	// it still comes back.
	select {
	case err := <-errs:
		if err != nil {
			f.logger.Warn().
				Err(err).
				Int("fetched", len(results)).
				Int("total", len(unique)).
				Msg("Worker error - returning partial results")
			return results, fmt.Errorf("batch fetch aborted (partial data: %d/%d ids): %w", len(results), len(unique), err)
		}
	default:
	}

	f.logger.Info().
		Int("fetched", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results, nil
}

// worker processes IDs from the queue until it drains, the context ends,
// or a fetch fails.
func (f *Fetcher) worker(ctx context.Context, queue <-chan string, results chan<- Result, errs chan<- error, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for id := range queue {
		select {
		case <-ctx.Done():
			f.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
		data, err := f.source.FetchByID(fetchCtx, id)
		cancel()

		if err != nil {
			f.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("id", id).
				Msg("Fetch failed")

			// Non-blocking error send; the first error wins.
			select {
			case errs <- err:
			default:
			}
			return
		}

		select {
		case results <- Result{ID: id, Data: data}:
		case <-ctx.Done():
			f.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled after fetch)")
			return
		}

		processed++
	}

	if processed > 0 {
		f.logger.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}
