// Package fetcher retrieves a documentation source's HTML pages from its
// docs host, parses out the indexable sections, and streams them as chunks
// ready for embedding. It is the one component allowed to hold an
// unauthenticated outbound HTTP client.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/ratelimit"
	"github.com/wyrecliff/docvault/retry"
)

// Chunk is one section of a fetched page, ready to be upserted and embedded.
type Chunk struct {
	DocPath    string
	Content    string
	Metadata   map[string]any
	TokenCount int
}

// Config bounds the fetcher's network behavior.
type Config struct {
	BaseURL           string
	HTTPTimeout       time.Duration
	MaxRetries        int
	RetryBase         time.Duration
	RetryMax          time.Duration
	EmbeddingTokenCap int
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.EmbeddingTokenCap <= 0 {
		c.EmbeddingTokenCap = 8000
	}
	return c
}

// Fetcher pulls and chunks one documentation source at a time. Each call to
// FetchSource is independent and safe to run concurrently with others.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	gate     *ratelimit.Gate
	splitter *splitter
}

func New(cfg Config, gate *ratelimit.Gate) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		gate:     gate,
		splitter: newSplitter(cfg.EmbeddingTokenCap),
	}
}

// FetchSource streams the chunks of sourceName@version over the returned
// channel. The channel is closed when fetching completes or fails; a
// terminal error (404 on the source itself) is returned synchronously
// instead of through the channel, since no chunk will ever arrive.
func (f *Fetcher) FetchSource(ctx context.Context, docType, sourceName, version string) (<-chan Chunk, error) {
	index, err := f.fetchIndex(ctx, docType, sourceName, version)
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for _, page := range index.pages {
			sections, err := f.fetchPage(ctx, page)
			if err != nil {
				slog.Warn("skipping page after fetch failure", "doc_path", page.path, "err", err)
				continue
			}
			for _, sec := range sections {
				for _, piece := range f.splitter.split(sec) {
					select {
					case out <- piece:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

type pageRef struct {
	path string
	url  string
}

type sourceIndex struct {
	pages []pageRef
}

// fetchIndex resolves the page list for a source. "latest" is resolved by
// the docs host itself via redirect, so no separate version-lookup call is
// needed; a 404 here means the source does not exist at all and is
// non-retriable.
func (f *Fetcher) fetchIndex(ctx context.Context, docType, sourceName, version string) (*sourceIndex, error) {
	url := fmt.Sprintf("%s/%s/%s/%s/index.html", f.cfg.BaseURL, docType, sourceName, version)
	body, status, err := f.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, docerr.New(docerr.NotFound, fmt.Sprintf("source %s/%s@%s not found on docs host", docType, sourceName, version))
	}
	idx, err := parseIndex(sourceName, body)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s/%s/%s/%s/", f.cfg.BaseURL, docType, sourceName, version)
	for i := range idx.pages {
		idx.pages[i].url = base + idx.pages[i].path
	}
	return idx, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, page pageRef) ([]section, error) {
	body, status, err := f.getWithRetry(ctx, page.url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, docerr.New(docerr.NotFound, fmt.Sprintf("page %s not found", page.path))
	}
	return parseSections(page.path, body)
}

// getWithRetry performs a rate-limited GET, retrying 5xx responses and
// network timeouts with the shared jittered backoff. A 404 is returned as a
// normal (status, nil-error) result since it is a structural fact about the
// docs host, not a transient failure.
func (f *Fetcher) getWithRetry(ctx context.Context, url string) ([]byte, int, error) {
	policy := retry.Policy{MaxAttempts: f.cfg.MaxRetries, Base: f.cfg.RetryBase, Max: f.cfg.RetryMax}

	var body []byte
	var status int
	err := retry.Do(ctx, policy, func(attempt int) (bool, error) {
		if err := f.gate.Acquire(ctx, ratelimit.TargetDocsHost, 1); err != nil {
			return false, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return true, readErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			f.gate.Penalize(ratelimit.TargetDocsHost)
			return true, fmt.Errorf("docs host rate limited us: %s", url)
		}
		if resp.StatusCode >= 500 {
			return true, fmt.Errorf("docs host returned %d for %s", resp.StatusCode, url)
		}

		body, status = b, resp.StatusCode
		return false, nil
	})
	if err != nil {
		return nil, 0, docerr.Wrap(docerr.UpstreamUnavailable, "fetch from docs host failed after retries", err)
	}
	return body, status, nil
}
