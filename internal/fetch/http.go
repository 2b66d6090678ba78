package fetch

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"
	"utmbindex-backend/internal/components/telemetry"
	libtelemetry "utmbindex-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_http_fetch = "http.fetch"

	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type HTTPOptions struct {
	// Timeout bounds a single request, a timeout is reported as StatusUnavailable.
	Timeout   time.Duration
	UserAgent string
	// Limiter may be shared by every worker so the whole run respects one request rate,
	// nil means unlimited.
	Limiter *rate.Limiter
	// CloudflareBypass wraps the transport with browser-like TLS and headers.
	CloudflareBypass bool
	Tel              telemetry.API
	// Dump receives every raw exchange when set.
	Dump telemetry.MessageDump
}

// HTTPFetcher fetches pages with its own resty client (and so its own connections and
// cookies).
type HTTPFetcher struct {
	http *resty.Client
	tel  telemetry.API
}

func NewHTTPFetcher(opts HTTPOptions) (*HTTPFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Tel == nil {
		opts.Tel = telemetry.Nop{}
	}
	tel := telemetry.NewScopedAPI("fetch", opts.Tel)

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)

	if opts.Limiter != nil {
		limiter := opts.Limiter
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	libtelemetry.TraceResty(client, "fetch/http")
	telemetry.InstrumentResty(client, tel, opts.Dump)

	return &HTTPFetcher{http: client, tel: tel}, nil
}

// HTTPFactory returns a Factory creating one HTTPFetcher per call.
func HTTPFactory(opts HTTPOptions) Factory {
	return func() (Fetcher, error) {
		return NewHTTPFetcher(opts)
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	err := ctx.Err()
	if err != nil {
		return Page{}, err
	}

	res, err := f.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		// timeouts and connection failures are worth another try
		return Page{
			URL:    url,
			Status: StatusUnavailable,
			Err:    err,
		}, nil
	}

	body := res.Body()
	page := Page{
		URL:    url,
		Status: Classify(res.StatusCode(), body),
		Code:   res.StatusCode(),
		Body:   body,
	}
	switch page.Status {
	case StatusUnavailable:
		page.Err = fmt.Errorf("unavailable: %s", res.Status())
	case StatusOtherError:
		page.Err = fmt.Errorf("unexpected status: %s", res.Status())
		f.tel.ReportWarning(report_http_fetch, page.Err, url)
	}
	return page, nil
}
