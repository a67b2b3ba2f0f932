// Package syncer runs the background refresh cycle: fetch the remote
// configuration, enumerate the configured directories, reconcile the
// local cache, and publish an immutable snapshot for the display.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driveshow/driveshow/internal/cache"
	"github.com/driveshow/driveshow/internal/domain"
	"github.com/driveshow/driveshow/internal/retry"
)

// Drive is the slice of the drive client the engine needs.
type Drive interface {
	GetConfig(ctx context.Context) (domain.SlideshowConfig, error)
	ListFolder(ctx context.Context, dir string) ([]domain.ImageRef, error)
	Download(ctx context.Context, itemID string, w io.Writer) (int64, error)
}

// Options configures an Engine.
type Options struct {
	Drive       Drive
	Cache       *cache.Cache
	Logger      *slog.Logger
	Refresh     time.Duration // cadence between successful cycles
	ErrorRetry  time.Duration // wait after a failed cycle
	Concurrency int           // parallel downloads
	Retry       retry.Policy  // per-download retry policy
}

// Engine owns the cache and publishes snapshots. The presentation loop
// reads the latest snapshot via Snapshot and is never blocked by the
// engine's network activity.
type Engine struct {
	drive       Drive
	cache       *cache.Cache
	logger      *slog.Logger
	refresh     time.Duration
	errorRetry  time.Duration
	concurrency int
	retryPolicy retry.Policy

	snapshot atomic.Pointer[domain.Snapshot]
	updates  chan struct{}

	// lastConfig backs the fail-soft rule: a broken or unreachable
	// config document keeps the previous cycle's configuration.
	lastConfig *domain.SlideshowConfig
}

// NewEngine creates a sync engine. The cache's existing contents are
// published immediately so a restart shows images before the first
// network round-trip completes.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Refresh <= 0 {
		opts.Refresh = time.Hour
	}
	if opts.ErrorRetry <= 0 {
		opts.ErrorRetry = 5 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	e := &Engine{
		drive:       opts.Drive,
		cache:       opts.Cache,
		logger:      opts.Logger,
		refresh:     opts.Refresh,
		errorRetry:  opts.ErrorRetry,
		concurrency: opts.Concurrency,
		retryPolicy: opts.Retry,
		updates:     make(chan struct{}, 1),
	}
	e.publish(domain.Snapshot{
		Images:   opts.Cache.Images(),
		Interval: domain.MinInterval,
		SyncedAt: time.Time{},
	})
	return e
}

// Snapshot returns the last published snapshot. Never nil.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.snapshot.Load()
}

// Updates signals whenever a new snapshot is published. The channel has
// capacity one; a slow reader only coalesces notifications.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Touch records that id was just displayed, so budget eviction prefers
// images the rotation has not shown for the longest time.
func (e *Engine) Touch(id string) {
	e.cache.Get(id)
}

// Run loops sync cycles until ctx is canceled. Failures never escape:
// this is an unattended display, so errors are logged and the last good
// snapshot stays on screen.
func (e *Engine) Run(ctx context.Context) {
	for {
		wait := e.refresh
		if err := e.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("sync cycle failed", "error", err, "retry_in", e.errorRetry)
			wait = e.errorRetry
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Cycle performs one full sync pass.
func (e *Engine) Cycle(ctx context.Context) error {
	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return err
	}

	if len(cfg.Directories) == 0 {
		e.cache.Prune(map[string]bool{})
		e.publish(domain.Snapshot{Interval: cfg.SlideInterval(), SyncedAt: time.Now()})
		e.logger.Warn("no directories configured, rotation is empty")
		return nil
	}

	results := e.enumerate(ctx, cfg.Directories)

	allFailed := true
	complete := true
	want := make(map[string]bool)
	var toFetch []domain.ImageRef
	for _, res := range results {
		if res.Err != nil {
			complete = false
			e.logger.Warn("directory enumeration failed, skipping this cycle",
				"dir", res.Directory, "error", res.Err)
			continue
		}
		allFailed = false
		for _, ref := range res.Images {
			want[ref.ID] = true
			if !e.cache.Has(ref.ID, ref.ETag) {
				toFetch = append(toFetch, ref)
			}
		}
	}
	if allFailed {
		return errors.New("every configured directory failed to enumerate")
	}

	fetched, failed := e.downloadAll(ctx, toFetch)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Prune only after a complete enumeration: a directory that failed
	// this cycle keeps its cached images on screen.
	pruned := 0
	if complete && failed == 0 {
		pruned = e.cache.Prune(want)
	}

	e.publish(domain.Snapshot{
		Images:   e.cache.Images(),
		Interval: cfg.SlideInterval(),
		SyncedAt: time.Now(),
	})
	e.logger.Info("sync cycle complete",
		"remote", len(want), "downloaded", fetched, "failed", failed, "pruned", pruned)
	return nil
}

// loadConfig fetches the remote configuration, falling back to the
// previous one when the fetch or parse fails.
func (e *Engine) loadConfig(ctx context.Context) (domain.SlideshowConfig, error) {
	cfg, err := e.drive.GetConfig(ctx)
	if err != nil {
		if e.lastConfig != nil {
			e.logger.Warn("config fetch failed, keeping previous configuration", "error", err)
			return *e.lastConfig, nil
		}
		return domain.SlideshowConfig{}, fmt.Errorf("load config: %w", err)
	}
	e.lastConfig = &cfg
	return cfg, nil
}

// enumerate lists every configured directory, collecting per-directory
// outcomes without short-circuiting on failure.
func (e *Engine) enumerate(ctx context.Context, dirs []string) []domain.DirectoryResult {
	results := make([]domain.DirectoryResult, len(dirs))
	for i, dir := range dirs {
		images, err := e.drive.ListFolder(ctx, dir)
		results[i] = domain.DirectoryResult{Directory: dir, Images: images, Err: err}
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

// downloadAll fetches refs with bounded concurrency. Each download is
// retried with backoff; a file that still fails is skipped for the cycle.
func (e *Engine) downloadAll(ctx context.Context, refs []domain.ImageRef) (fetched, failed int) {
	if len(refs) == 0 {
		return 0, 0
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	var okCount, failCount atomic.Int64

	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ref domain.ImageRef) {
			defer wg.Done()
			defer func() { <-sem }()

			err := retry.Do(ctx, e.retryPolicy, func() error {
				_, err := e.cache.Put(ref.ID, ref.Name, ref.ETag, func(w io.Writer) error {
					_, err := e.drive.Download(ctx, ref.ID, w)
					return err
				})
				return err
			})
			if err != nil {
				failCount.Add(1)
				e.logger.Warn("download failed, skipping", "name", ref.Name, "id", ref.ID, "error", err)
				return
			}
			okCount.Add(1)
			e.logger.Debug("downloaded image", "name", ref.Name, "size", ref.Size)
		}(ref)
	}
	wg.Wait()
	return int(okCount.Load()), int(failCount.Load())
}

// publish atomically swaps in a new snapshot and pokes the updates
// channel.
func (e *Engine) publish(snap domain.Snapshot) {
	e.snapshot.Store(&snap)
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
