package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"time"
	"utmbindex-backend/internal/assert"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/internal/extract"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/retry"
)

var (
	// ErrResumePointNotFound means the listing ended without showing the id to resume
	// after. It is not the same as running out of pages.
	ErrResumePointNotFound = errors.New("resume point not found")
	// ErrEmptyPage means a page that is not the last one kept coming back empty.
	ErrEmptyPage = errors.New("listing page stayed empty")
)

const (
	DefaultEmptyPageRetries    = 5
	DefaultListingCheckpointAt = 20
	DefaultMaxRestarts         = 3

	report_listing_gap        = "listing.gap"
	report_listing_restart    = "listing.restart"
	report_listing_pages      = "listing.pages"
	report_listing_ids        = "listing.ids"
	report_listing_checkpoint = "listing.checkpoint"
)

// ResumePoint locates where an earlier run stopped: the last id it collected and the
// page that id was on. The listing may have shifted since, so the id is searched for
// from Page onwards.
type ResumePoint struct {
	LastID string
	Page   int
}

type ListingOptions struct {
	BaseURL string
	// MaxPages stops the listing after that page, 0 reads the page count from the
	// pagination bar.
	MaxPages int
	// EmptyPageRetries is how many times an empty page that is not the last one is
	// fetched again before it is given up on.
	EmptyPageRetries int
	// SkipGaps records a page that stays empty and carries on, otherwise the listing
	// stops with ErrEmptyPage.
	SkipGaps bool
	// CheckpointEvery saves the ids after this many pages.
	CheckpointEvery int
	// MaxRestarts bounds how often the listing resumes itself after a page could not be
	// fetched, negative disables restarts.
	MaxRestarts int
	Resume      *ResumePoint
	Policy      retry.Policy
	Tel         telemetry.API
}

func (o ListingOptions) withDefaults() ListingOptions {
	if o.BaseURL == "" {
		o.BaseURL = DefaultSearchURL
	}
	if o.EmptyPageRetries <= 0 {
		o.EmptyPageRetries = DefaultEmptyPageRetries
	}
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = DefaultListingCheckpointAt
	}
	if o.MaxRestarts == 0 {
		o.MaxRestarts = DefaultMaxRestarts
	}
	if o.MaxRestarts < 0 {
		o.MaxRestarts = 0
	}
	if o.Tel == nil {
		o.Tel = telemetry.Nop{}
	}
	return o
}

type ListingResult struct {
	Pages    int
	LastPage int
	Added    int
	// Gaps are the pages skipped because they stayed empty.
	Gaps     []int
	Restarts int
}

// PageURL returns the url of a listing page, pages start at 1.
func PageURL(base string, page int) string {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?page=%d", base, page)
	}
	query := u.Query()
	query.Set("page", strconv.Itoa(page))
	u.RawQuery = query.Encode()
	return u.String()
}

type listing struct {
	opts    ListingOptions
	fetcher fetch.Fetcher
	ids     *IDList
	saver   Saver
	tel     telemetry.API
	result  ListingResult

	// lastPage is the last page fully handled, lastSeen the last id shown and
	// lastIDPage the page it was shown on. They differ after a skipped gap.
	lastPage   int
	lastSeen   string
	lastIDPage int
	// seeking is the resume id not found yet, it outlives a restart.
	seeking   string
	sinceSave int
}

// RunIDListing walks the paginated runner listing one page at a time, adding every id
// to ids. When a page cannot be fetched after retrying, the listing saves and resumes
// from the last page it finished, up to MaxRestarts times.
func RunIDListing(ctx context.Context, fetcher fetch.Fetcher, ids *IDList, saver Saver, opts ListingOptions) (ListingResult, error) {
	assert.NotNil(fetcher, "fetcher")
	assert.NotNil(ids, "ids")
	assert.NotNil(saver, "saver")
	opts = opts.withDefaults()

	l := &listing{
		opts:    opts,
		fetcher: fetcher,
		ids:     ids,
		saver:   saver,
		tel:     telemetry.NewScopedAPI("harvest", opts.Tel),
	}

	resume := opts.Resume
	for {
		err := l.scan(ctx, resume)
		switch {
		case err == nil:
			return l.result, l.save()
		case ctx.Err() != nil:
			return l.result, errors.Join(ctx.Err(), l.save())
		case errors.Is(err, retry.ErrExhausted) && l.result.Restarts < opts.MaxRestarts:
			saveErr := l.save()
			if saveErr != nil {
				return l.result, errors.Join(err, saveErr)
			}
			l.result.Restarts++
			resume = l.resumePoint(resume)
			l.tel.ReportWarning(report_listing_restart, err, slog.Int("restart", l.result.Restarts), slog.Int("page", resume.Page))
		default:
			return l.result, errors.Join(err, l.save())
		}
	}
}

func (l *listing) resumePoint(previous *ResumePoint) *ResumePoint {
	switch {
	case l.seeking != "" || l.lastPage == 0:
		return previous
	case l.lastSeen != "" && l.lastIDPage == l.lastPage:
		return &ResumePoint{LastID: l.lastSeen, Page: l.lastIDPage}
	default:
		return &ResumePoint{Page: l.lastPage + 1}
	}
}

func (l *listing) save() error {
	err := l.saver.Save(l.ids.Snapshot())
	if err != nil {
		l.tel.ReportBroken(report_listing_checkpoint, err)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	l.sinceSave = 0
	l.tel.ReportCount(report_listing_pages, int64(l.result.Pages))
	l.tel.ReportCount(report_listing_ids, int64(l.ids.Len()))
	return nil
}

func (l *listing) scan(ctx context.Context, resume *ResumePoint) error {
	page := 1
	l.seeking = ""
	if resume != nil {
		page = max(resume.Page, 1)
		l.seeking = resume.LastID
	}
	maxPages := l.opts.MaxPages

	for {
		content, exists, err := l.fetchPage(ctx, page)
		if err != nil {
			return err
		}
		if !exists {
			if l.seeking != "" {
				return fmt.Errorf("%w: %q, listing ended at page %d", ErrResumePointNotFound, l.seeking, page-1)
			}
			return nil
		}
		if l.opts.MaxPages == 0 && content.MaxPage > maxPages {
			maxPages = content.MaxPage
		}

		ids := content.IDs
		if l.seeking != "" {
			i := slices.Index(ids, l.seeking)
			if i < 0 {
				ids = nil
			} else {
				ids = ids[i+1:]
				l.seeking = ""
			}
		}
		l.result.Added += l.ids.AddAll(ids)
		l.result.Pages++
		l.result.LastPage = page
		l.lastPage = page
		if len(content.IDs) > 0 {
			l.lastSeen = content.IDs[len(content.IDs)-1]
			l.lastIDPage = page
		}
		l.tel.ReportDebug(
			"page",
			slog.Int("page", page),
			slog.Int("ids", len(content.IDs)),
			slog.Int("total", l.ids.Len()),
		)

		l.sinceSave++
		if l.sinceSave >= l.opts.CheckpointEvery {
			err = l.save()
			if err != nil {
				return err
			}
		}

		last := !content.HasNext || (maxPages > 0 && page >= maxPages)
		if last {
			if l.seeking != "" {
				return fmt.Errorf("%w: %q, listing ended at page %d", ErrResumePointNotFound, l.seeking, page)
			}
			return nil
		}
		page++
	}
}

// fetchPage returns exists == false when the page is past the end of the listing.
func (l *listing) fetchPage(ctx context.Context, page int) (extract.IDPage, bool, error) {
	pageURL := PageURL(l.opts.BaseURL, page)
	for attempt := 1; ; attempt++ {
		res, err := fetchWithRetry(ctx, l.fetcher, pageURL, l.opts.Policy)
		if err != nil {
			return extract.IDPage{}, false, fmt.Errorf("page %d: %w", page, err)
		}
		switch res.Status {
		case fetch.StatusNotFound:
			return extract.IDPage{}, false, nil
		case fetch.StatusOtherError:
			return extract.IDPage{}, false, fmt.Errorf("page %d: %w", page, res.Err)
		}

		content, err := extract.RunnerIDPage(ctx, res.Body)
		if err != nil {
			return extract.IDPage{}, false, fmt.Errorf("page %d: %w", page, err)
		}
		if len(content.IDs) > 0 || !content.HasNext {
			return content, true, nil
		}

		if attempt > l.opts.EmptyPageRetries {
			if !l.opts.SkipGaps {
				return extract.IDPage{}, false, fmt.Errorf("%w: page %d", ErrEmptyPage, page)
			}
			if !slices.Contains(l.result.Gaps, page) {
				l.result.Gaps = append(l.result.Gaps, page)
			}
			l.tel.ReportWarning(report_listing_gap, slog.Int("page", page))
			return content, true, nil
		}

		l.tel.ReportDebug("empty page", slog.Int("page", page), slog.Int("attempt", attempt))
		err = sleep(ctx, l.opts.Policy.Delay(attempt))
		if err != nil {
			return extract.IDPage{}, false, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
