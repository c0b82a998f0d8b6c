package seeder

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nevc-media/vidstream/cli/internal/client"
)

// Catalog is the subset of the API client the runner drives.
type Catalog interface {
	Publish(ctx context.Context, fileName string, content io.Reader, draft client.Draft) (*client.Video, error)
	Play(ctx context.Context, id int64, w io.Writer) (int64, error)
}

// Result summarises a run.
type Result struct {
	Published int64
	Failed    int64
	Views     int64
}

type Runner struct {
	cfg     *Config
	catalog Catalog
	gen     *Generator
	logger  *slog.Logger
}

func NewRunner(cfg *Config, catalog Catalog, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		catalog: catalog,
		gen:     NewGenerator(cfg.Seed, cfg.MinBytes, cfg.MaxBytes),
		logger:  logger,
	}
}

// Run publishes cfg.Count generated videos using cfg.Workers concurrent
// uploads. Individual failures are counted and logged; Run only returns an
// error when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	items := make(chan Item)

	var wg sync.WaitGroup
	for range r.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				r.seed(ctx, item, &res)
			}
		}()
	}

	var err error
produce:
	for range r.cfg.Count {
		select {
		case items <- r.gen.Next():
		case <-ctx.Done():
			err = ctx.Err()
			break produce
		}
	}
	close(items)
	wg.Wait()

	return Result{
		Published: atomic.LoadInt64(&res.Published),
		Failed:    atomic.LoadInt64(&res.Failed),
		Views:     atomic.LoadInt64(&res.Views),
	}, err
}

func (r *Runner) seed(ctx context.Context, item Item, res *Result) {
	video, err := r.catalog.Publish(ctx, item.FileName, bytes.NewReader(item.Content), item.Draft)
	if err != nil {
		atomic.AddInt64(&res.Failed, 1)
		r.logger.Warn("publish failed", slog.String("title", item.Draft.Title), slog.String("error", err.Error()))
		return
	}
	atomic.AddInt64(&res.Published, 1)
	r.logger.Debug("published", slog.Int64("id", video.ID), slog.String("title", video.Title))

	for range r.cfg.ViewsPerVideo {
		if _, err := r.catalog.Play(ctx, video.ID, io.Discard); err != nil {
			r.logger.Warn("play failed", slog.Int64("id", video.ID), slog.String("error", err.Error()))
			return
		}
		atomic.AddInt64(&res.Views, 1)
	}
}
