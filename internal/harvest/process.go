package harvest

import (
	"context"
	"errors"
	"fmt"
	"utmbindex-backend/internal/fetch"
	"utmbindex-backend/internal/retry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("utmbindex.internal.harvest")

type OutcomeKind int

const (
	OutcomeFound OutcomeKind = iota
	// OutcomeAbsent is an expected miss: the page does not exist or has no usable record.
	OutcomeAbsent
	OutcomeFailed
	// OutcomeCanceled means the run was stopped before the item finished.
	OutcomeCanceled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeAbsent:
		return "absent"
	case OutcomeFailed:
		return "failed"
	default:
		return "canceled"
	}
}

type Outcome[I, R any] struct {
	Item   I
	URL    string
	Kind   OutcomeKind
	Record R
	Err    error
}

// fetchWithRetry fetches url until it is not StatusUnavailable or the policy gives up.
func fetchWithRetry(ctx context.Context, fetcher fetch.Fetcher, url string, policy retry.Policy) (fetch.Page, error) {
	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) (fetch.Page, error) {
		page, err := fetcher.Fetch(ctx, url)
		if err != nil {
			return page, err
		}
		if page.Status == fetch.StatusUnavailable {
			cause := page.Err
			if cause == nil {
				cause = fmt.Errorf("%s unavailable", url)
			}
			return page, retry.Transient(cause)
		}
		return page, nil
	})
}

// Process fetches and parses a single item. It never panics on bad pages and reports
// every problem through the returned Outcome.
func Process[I, R any](ctx context.Context, fetcher fetch.Fetcher, job Job[I, R], item I, policy retry.Policy) Outcome[I, R] {
	url := job.URL(item)
	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("job", job.Name),
		attribute.String("url", url),
	)

	out := Outcome[I, R]{Item: item, URL: url}

	page, err := fetchWithRetry(ctx, fetcher, url, policy)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			out.Kind = OutcomeCanceled
			out.Err = err
			return out
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		out.Kind = OutcomeFailed
		out.Err = err
		return out
	}

	switch page.Status {
	case fetch.StatusNotFound:
		out.Kind = OutcomeAbsent
		return out
	case fetch.StatusOtherError:
		out.Kind = OutcomeFailed
		out.Err = page.Err
		if out.Err == nil {
			out.Err = fmt.Errorf("unexpected response for %s", url)
		}
		span.SetStatus(codes.Error, out.Err.Error())
		return out
	}

	record, ok, err := job.Parse(ctx, item, page.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		out.Kind = OutcomeFailed
		out.Err = fmt.Errorf("parse %s: %w", url, err)
		return out
	}
	if !ok {
		out.Kind = OutcomeAbsent
		return out
	}
	out.Kind = OutcomeFound
	out.Record = record
	return out
}
