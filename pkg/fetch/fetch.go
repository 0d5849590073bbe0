// Package fetch downloads installation payloads. HTTP downloads resume from
// a .part file; s3:// locations are read anonymously; file:// and plain
// paths are copied.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/filesystem"
	"github.com/arthur-debert/kitman/pkg/internal/hashutil"
	"github.com/arthur-debert/kitman/pkg/logging"
	"github.com/arthur-debert/kitman/pkg/progress"
	"github.com/rs/zerolog"
	"golang.org/x/net/http/httpproxy"
)

const (
	defaultTimeout = 10 * time.Minute
	defaultRetries = 3
	partSuffix     = ".part"
)

// Fetcher copies the resource at location into dest.
type Fetcher interface {
	Fetch(ctx context.Context, location, dest string) error
}

// Proxy mirrors the proxy table of a toolkit manifest.
type Proxy struct {
	HTTP    string
	HTTPS   string
	NoProxy string
}

// Options configures a Client. Zero values get defaults.
type Options struct {
	Proxy    *Proxy
	Insecure bool
	Timeout  time.Duration
	Retries  int
	Backoff  time.Duration
	Progress progress.Reporter
	Logger   *zerolog.Logger

	// S3 serves s3:// locations; nil builds an anonymous client lazily.
	S3         S3Getter
	S3Region   string
	S3Endpoint string
}

// Client is the default Fetcher.
type Client struct {
	http    *http.Client
	opts    Options
	tracker progress.Tracker
	logger  zerolog.Logger
	s3      S3Getter
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Second
	}
	logger := logging.OrDefault(opts.Logger, "fetch")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(opts.Proxy)
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user opted in
	}

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:    opts,
		tracker: progress.NewTracker(opts.Progress),
		logger:  logger,
		s3:      opts.S3,
	}
}

// proxyFunc honours explicit manifest proxies and falls back to the
// environment for whatever is left empty.
func proxyFunc(p *Proxy) func(*http.Request) (*url.URL, error) {
	env := httpproxy.FromEnvironment()
	if p != nil {
		if p.HTTP != "" {
			env.HTTPProxy = p.HTTP
		}
		if p.HTTPS != "" {
			env.HTTPSProxy = p.HTTPS
		}
		if p.NoProxy != "" {
			env.NoProxy = p.NoProxy
		}
	}
	fn := env.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, location, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "create %s", filepath.Dir(dest))
	}

	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return c.fetchHTTP(ctx, location, dest)
	case strings.HasPrefix(location, "s3://"):
		return c.fetchS3(ctx, location, dest)
	case strings.HasPrefix(location, "file://"):
		u, err := url.Parse(location)
		if err != nil {
			return errors.Wrapf(err, errors.ErrInvalidInput, "bad location %s", location)
		}
		return filesystem.CopyFile(u.Path, dest)
	default:
		return filesystem.CopyFile(location, dest)
	}
}

func (c *Client) fetchHTTP(ctx context.Context, location, dest string) error {
	part := dest + partSuffix
	name := filepath.Base(dest)

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug().Int("attempt", attempt).Str("url", location).Msg("Retrying download")
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCancelled, "download cancelled")
			case <-time.After(c.opts.Backoff * time.Duration(attempt)):
			}
		}

		retry, err := c.attemptHTTP(ctx, location, part, name)
		if err == nil {
			if err := os.Rename(part, dest); err != nil {
				return errors.Wrapf(err, errors.ErrFileWrite, "finalize %s", dest)
			}
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}

	if info, err := os.Stat(part); err == nil && info.Size() > 0 {
		return errors.Wrapf(lastErr, errors.ErrPartialDownload, "download of %s incomplete", location).
			WithDetail("received", info.Size()).
			WithDetail("part", part)
	}
	return lastErr
}

// attemptHTTP makes one request, resuming from whatever is already in part.
// It reports whether a failure is worth retrying.
func (c *Client) attemptHTTP(ctx context.Context, location, part, name string) (bool, error) {
	var offset int64
	if info, err := os.Stat(part); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrInvalidInput, "bad url %s", location)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	logging.LogCommand(c.logger, "GET", []string{location})
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, errors.Wrap(ctx.Err(), errors.ErrCancelled, "download cancelled")
		}
		return isNetError(err), errors.Wrapf(err, errors.ErrNetwork, "request %s", location)
	}
	defer func() { _ = resp.Body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		flags |= os.O_TRUNC
		offset = 0
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		if size, ok := rangeTotal(resp.Header.Get("Content-Range")); ok && size == offset {
			return false, nil
		}
		c.logger.Warn().Str("part", part).Int64("received", offset).
			Msg("part file does not match the remote size, restarting download")
		if err := os.Remove(part); err != nil {
			return false, errors.Wrapf(err, errors.ErrFileWrite, "remove %s", part)
		}
		return c.attemptHTTP(ctx, location, part, name)
	default:
		retry := resp.StatusCode >= 500 && resp.StatusCode <= 599
		return retry, errors.Newf(errors.ErrNetwork, "GET %s: %s", location, resp.Status).
			WithDetail("status", resp.StatusCode)
	}

	out, err := os.OpenFile(part, flags, 0644)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "open %s", part)
	}

	total := resp.ContentLength
	if total > 0 {
		total += offset
	}
	c.tracker.SubStart("downloading "+name, total, progress.UnitBytes)
	if offset > 0 {
		c.tracker.SubUpdate(offset)
	}

	_, copyErr := io.Copy(io.MultiWriter(out, progress.CountingWriter{T: c.tracker}), resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		c.tracker.SubEnd("")
		return isNetError(copyErr) || copyErr == io.ErrUnexpectedEOF,
			errors.Wrapf(copyErr, errors.ErrNetwork, "read %s", location)
	}
	if closeErr != nil {
		c.tracker.SubEnd("")
		return false, errors.Wrapf(closeErr, errors.ErrFileWrite, "close %s", part)
	}
	c.tracker.SubEnd("downloaded " + name)
	return false, nil
}

// rangeTotal reads the complete length from a "bytes */N" Content-Range.
func rangeTotal(header string) (int64, bool) {
	i := strings.LastIndexByte(header, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(header[i+1:]), 10, 64)
	return n, err == nil
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// VerifySHA256 compares the digest of path against the hex-encoded expected
// value. A "sha256:" prefix on expected is accepted.
func VerifySHA256(path, expected string) error {
	actual, err := hashutil.FileSHA256(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "hash %s", path)
	}
	if actual != hashutil.Normalize(expected) {
		return errors.Newf(errors.ErrChecksum, "checksum mismatch for %s", path).
			WithDetail("expected", expected).
			WithDetail("actual", actual)
	}
	return nil
}
