package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/dominicfeliton/minecraft-server-script/internal/ui"
)

const maxAttempts = 3

// headerTimeout bounds connection setup and the wait for response headers.
// Bodies stream without a deadline; ctx cancels them.
const headerTimeout = time.Minute

// statusError is an unexpected HTTP status.
type statusError struct {
	Code int
	URL  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// APIClient talks to the PaperMC API and downloads artifacts.
type APIClient struct {
	base   string
	http   *http.Client
	output *ui.UI

	// retryDelay is the first backoff interval.
	retryDelay time.Duration
}

// NewAPIClient creates a client for the API rooted at base.
func NewAPIClient(base string, client *http.Client, output *ui.UI) *APIClient {
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = headerTimeout
		client = &http.Client{Transport: transport}
	}
	return &APIClient{base: base, http: client, output: output, retryDelay: time.Second}
}

// withRetry retries op on network errors and 5xx responses.
func (c *APIClient) withRetry(ctx context.Context, url string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.retryDelay * 10
	b.Reset()

	attempt := 0
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.Code < 500 {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		attempt++
		if attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		zap.L().Debug("retrying request", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, backoff.WithContext(b, ctx))
}

func (c *APIClient) get(ctx context.Context, url string) (*http.Response, error) {
	zap.L().Debug("http get", zap.String("url", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mcserver (+https://github.com/dominicfeliton/minecraft-server-script)")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &statusError{Code: resp.StatusCode, URL: url}
	}
	return resp, nil
}

// getJSON fetches url and decodes the body into target.
func (c *APIClient) getJSON(ctx context.Context, url string, target any) error {
	return c.withRetry(ctx, url, func() error {
		resp, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding %s: %w", url, err))
		}
		return nil
	})
}

// Download fetches url into dest. The body is written to a temporary file
// next to dest and renamed into place, so an interrupted download never
// leaves a truncated jar behind.
func (c *APIClient) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	tmp := dest + ".part"
	err := c.withRetry(ctx, url, func() error {
		resp, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		f, err := os.Create(tmp)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating %s: %w", tmp, err))
		}
		defer f.Close()

		var w io.Writer = f
		if c.output != nil && c.output.IsTerminal() {
			bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+filepath.Base(dest))
			w = io.MultiWriter(f, bar)
			defer fmt.Fprintln(c.output.Writer())
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("writing %s: %w", tmp, err)
		}
		return f.Close()
	})
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("moving %s into place: %w", dest, err)
	}
	return nil
}
