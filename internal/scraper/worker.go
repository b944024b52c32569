package scraper

import (
	"context"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/metrics"
	"gigalert/discovery-service/internal/model"
	"gigalert/discovery-service/internal/store"
)

// PageSource yields the postings of one listing page. Failures yield nothing.
type PageSource interface {
	FetchPage(ctx context.Context, page int) iter.Seq[model.Posting]
}

// Notifier delivers a recorded listing to a subscriber's chat.
type Notifier interface {
	NotifyListing(ctx context.Context, token, chatID string, l model.Listing) error
}

// MatchPublisher announces recorded listings to other services.
type MatchPublisher interface {
	PublishMatch(ctx context.Context, l model.Listing) error
}

// Worker runs discovery cycles: fetch every page, match titles against the
// subscriber's keywords, record new matches and notify.
type Worker struct {
	source    PageSource
	repo      store.Repository
	notifier  Notifier
	publisher MatchPublisher // optional
	log       logger.Logger

	// admitMu serialises exists -> record per listing so one link is never
	// notified twice even if two cycles overlap.
	admitMu sync.Mutex
}

// NewWorker constructs a Worker. publisher may be nil.
func NewWorker(source PageSource, repo store.Repository, notifier Notifier, publisher MatchPublisher, log logger.Logger) *Worker {
	return &Worker{
		source:    source,
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		log:       log.With(logger.String("component", "worker")),
	}
}

// RunCycle executes one discovery cycle for job and returns its summary.
// Pages are fetched concurrently; postings are then processed in page order
// and document order. Fetch, store and send failures are logged per item and
// never abort the cycle.
func (w *Worker) RunCycle(ctx context.Context, job model.Job) model.CycleStats {
	start := time.Now()
	stats := model.CycleStats{CycleID: uuid.NewString(), Pages: job.Pages}
	log := w.log.With(
		logger.String("cycle_id", stats.CycleID),
		logger.String("owner_id", job.OwnerID),
	)
	log.Info("Discovery cycle started",
		logger.Int("pages", job.Pages),
		logger.Strings("keywords", job.Keywords),
	)

	matcher := NewKeywordMatcher(job.Keywords)
	pages := w.fetchAll(ctx, job.Pages)

	var (
		sends            errgroup.Group
		notified, failed atomic.Int64
	)
	sends.SetLimit(max(job.Pages, 1))

	for i, postings := range pages {
		for _, p := range postings {
			stats.Scanned++
			if !matcher.Match(p.Title) {
				continue
			}
			stats.Matched++
			metrics.RecordListing("matched")

			listing, isNew, err := w.admit(ctx, job.OwnerID, p)
			if err != nil {
				stats.StoreErrors++
				metrics.RecordListing("store_error")
				log.Error("Store error, skipping listing",
					logger.Int("page", i+1),
					logger.String("link", p.Link),
					logger.Error(err),
				)
				continue
			}
			if !isNew {
				stats.Duplicates++
				metrics.RecordListing("duplicate")
				continue
			}
			stats.Recorded++
			metrics.RecordListing("recorded")
			log.Info("Listing matched", logger.String("title", listing.Title), logger.String("link", listing.Link))

			sends.Go(func() error {
				if err := w.notifier.NotifyListing(ctx, job.Token, job.ChatID, listing); err != nil {
					failed.Add(1)
					log.Warn("Notification failed, not retrying",
						logger.String("link", listing.Link),
						logger.Error(err),
					)
				} else {
					notified.Add(1)
				}
				if w.publisher != nil {
					if err := w.publisher.PublishMatch(ctx, listing); err != nil {
						log.Warn("Publish match event failed", logger.Error(err))
					}
				}
				return nil // best-effort: never cancel sibling sends
			})
		}
	}
	_ = sends.Wait()

	stats.Notified = int(notified.Load())
	stats.NotifyFails = int(failed.Load())
	stats.Duration = time.Since(start)
	metrics.RecordCycle(stats.Duration.Seconds())

	log.Info("Discovery cycle complete",
		logger.Int("scanned", stats.Scanned),
		logger.Int("matched", stats.Matched),
		logger.Int("recorded", stats.Recorded),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("notified", stats.Notified),
		logger.Int("notify_failures", stats.NotifyFails),
		logger.Int("store_errors", stats.StoreErrors),
		logger.Duration("duration", stats.Duration),
	)
	return stats
}

// fetchAll fetches pages 1..n concurrently and returns their postings indexed by page-1.
func (w *Worker) fetchAll(ctx context.Context, n int) [][]model.Posting {
	pages := make([][]model.Posting, n)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			pages[i] = slices.Collect(w.source.FetchPage(ctx, i+1))
			return nil
		})
	}
	_ = g.Wait()

	return pages
}

// admit checks and records p for owner. isNew is false for already-known links.
func (w *Worker) admit(ctx context.Context, ownerID string, p model.Posting) (model.Listing, bool, error) {
	w.admitMu.Lock()
	defer w.admitMu.Unlock()

	exists, err := w.repo.Exists(ctx, p.Link, ownerID)
	if err != nil {
		return model.Listing{}, false, err
	}
	if exists {
		return model.Listing{}, false, nil
	}

	listing := model.Listing{
		Title:        p.Title,
		Link:         p.Link,
		OwnerID:      ownerID,
		DiscoveredAt: time.Now().UTC(),
	}
	inserted, err := w.repo.Record(ctx, listing)
	if err != nil {
		return model.Listing{}, false, err
	}
	return listing, inserted, nil
}
