// Package fetch downloads the GeoNames dump archives over HTTP with retry,
// rate limiting, and ETag-based change detection.
package fetch

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures the archive client.
type Options struct {
	// BaseURL is the dump directory, default the public GeoNames export.
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// Progress enables a byte progress bar on downloads.
	Progress bool
}

// Client fetches dump archives from a single GeoNames mirror. Requests are
// rate limited; the public server throttles aggressive clients.
type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
	opts    Options
	log     *zap.Logger
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://download.geonames.org/export/dump"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "geonames-cli/1.0"
	}
	if opts.Timeout == 0 {
		// Archive downloads run for minutes; the timeout bounds a stalled
		// connection, not a healthy transfer.
		opts.Timeout = 30 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &Client{
		hc:      &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(2, 2),
		opts:    opts,
		log:     zap.L().With(zap.String("component", "fetch")),
	}
}

// Archive downloads the named archive (e.g. "allCountries.zip") into dir,
// skipping the transfer when the server's ETag matches the last download.
// Returns the local path and whether new bytes were fetched.
func (c *Client) Archive(ctx context.Context, name, dir string) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, eris.Wrapf(err, "fetch: create %s", dir)
	}

	dest := filepath.Join(dir, name)
	url := strings.TrimSuffix(c.opts.BaseURL, "/") + "/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if etag := c.readETag(dest); etag != "" && fileExists(dest) {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return "", false, eris.Wrapf(err, "fetch: download %s", name)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusNotModified:
		c.log.Info("archive unchanged", zap.String("name", name))
		return dest, false, nil
	case http.StatusOK:
	default:
		return "", false, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := c.writeFile(dest, resp.Body, resp.ContentLength, name); err != nil {
		return "", false, err
	}
	c.storeETag(dest, resp.Header.Get("ETag"))

	c.log.Info("archive downloaded",
		zap.String("name", name),
		zap.String("path", dest),
		zap.Int64("bytes", resp.ContentLength),
	)
	return dest, true, nil
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range c.opts.MaxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		resp, err := c.hc.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			c.log.Warn("request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			c.log.Warn("server busy, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}
	return nil, eris.Wrap(lastErr, "fetch: all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// writeFile streams the body to dest via a temp file so an interrupted
// download never leaves a truncated archive behind.
func (c *Client) writeFile(dest string, body io.Reader, size int64, name string) error {
	tmp := dest + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "fetch: create %s", tmp)
	}

	var w io.Writer = f
	if c.opts.Progress && size > 0 {
		bar := progressbar.NewOptions64(
			size,
			progressbar.OptionSetDescription("fetch: "+name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(f, bar)
	}

	if _, err := io.Copy(w, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return eris.Wrapf(err, "fetch: write %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return eris.Wrapf(err, "fetch: close %s", tmp)
	}
	return eris.Wrapf(os.Rename(tmp, dest), "fetch: rename %s", tmp)
}

// ETags are kept in a sidecar file next to the archive.

func (c *Client) readETag(dest string) string {
	b, err := os.ReadFile(dest + ".etag")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (c *Client) storeETag(dest, etag string) {
	if etag == "" {
		os.Remove(dest + ".etag")
		return
	}
	if err := os.WriteFile(dest+".etag", []byte(etag+"\n"), 0o644); err != nil {
		c.log.Warn("failed to store etag", zap.String("path", dest), zap.Error(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
