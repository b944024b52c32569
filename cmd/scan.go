package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gigalert/discovery-service/internal/model"
	"gigalert/discovery-service/internal/notify"
	"gigalert/discovery-service/internal/scraper"
	"gigalert/discovery-service/internal/store"
	"gigalert/discovery-service/internal/subscriber"
)

type scanOptions struct {
	owner    string
	keywords []string
	chatID   string
	pages    int
	dryRun   bool
}

func newScanCmd() *cobra.Command {
	var opts scanOptions
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single discovery cycle and exit",
		Long: `Run one discovery cycle for a subscriber. Keywords and chat id come from
the subscriber record unless given as flags. With --dry-run nothing is stored
and matches are printed instead of sent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return scan(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.owner, "owner", "", "subscriber id")
	cmd.Flags().StringSliceVar(&opts.keywords, "keywords", nil, "comma-separated keywords (overrides the subscriber's)")
	cmd.Flags().StringVar(&opts.chatID, "chat", "", "Telegram chat id (overrides the subscriber's)")
	cmd.Flags().IntVar(&opts.pages, "pages", 0, "pages to scan (default DISCOVERY_PAGES)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print matches instead of storing and sending them")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func scan(ctx context.Context, out io.Writer, opts scanOptions) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	job, err := scanJob(ctx, a, opts)
	if err != nil {
		return err
	}

	var notifier scraper.Notifier
	if opts.dryRun {
		a.repo = store.NewMemoryStore()
		notifier = &printNotifier{out: out, baseURL: a.cfg.ListingBaseURL}
		job.Token, job.ChatID = "dry-run", "dry-run"
	} else if job.ChatID == "" {
		return errors.New("channel not linked; pass --chat or --dry-run")
	}

	stats := newWorker(a, notifier).RunCycle(ctx, job)
	fmt.Fprintf(out, "cycle %s: scanned=%d matched=%d recorded=%d duplicates=%d notified=%d failed=%d\n",
		stats.CycleID, stats.Scanned, stats.Matched, stats.Recorded, stats.Duplicates, stats.Notified, stats.NotifyFails)
	return nil
}

// scanJob builds the job from the subscriber record and flag overrides.
func scanJob(ctx context.Context, a *app, opts scanOptions) (model.Job, error) {
	job := model.Job{
		Pages:    a.cfg.Pages,
		Keywords: opts.keywords,
		Token:    a.cfg.TelegramToken,
		ChatID:   opts.chatID,
		OwnerID:  opts.owner,
	}
	if opts.pages > 0 {
		job.Pages = opts.pages
	}

	if len(job.Keywords) == 0 || (job.ChatID == "" && !opts.dryRun) {
		sub, err := a.directory().Lookup(ctx, opts.owner)
		if err != nil {
			return model.Job{}, err
		}
		if err := subscriber.Eligible(sub); err != nil {
			return model.Job{}, err
		}
		if len(job.Keywords) == 0 {
			job.Keywords = sub.Keywords
		}
		if job.ChatID == "" {
			job.ChatID = sub.ChatID
		}
	}
	if !opts.dryRun && job.Token == "" {
		return model.Job{}, errors.New("TELEGRAM_TOKEN is required unless --dry-run")
	}
	return job, nil
}

// printNotifier writes each message to out instead of sending it.
type printNotifier struct {
	mu      sync.Mutex
	out     io.Writer
	baseURL string
}

func (p *printNotifier) NotifyListing(_ context.Context, _, _ string, l model.Listing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, strings.TrimSpace(notify.FormatListing(p.baseURL, l)))
	return err
}
