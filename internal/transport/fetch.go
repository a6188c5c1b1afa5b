// Package transport downloads UAVSAR archives and single images over HTTP.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/uavsar/internal/httputil"
	"github.com/banshee-data/uavsar/internal/security"
)

// DefaultUserAgent identifies the pipeline to the data portal.
const DefaultUserAgent = "uavsar-scene/1.0"

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("GET %s: %s", e.URL, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ErrNoFileName is returned when a URL has no final path segment to save as.
var ErrNoFileName = errors.New("url has no file name")

// Fetcher downloads files into a local directory.
type Fetcher struct {
	Client    httputil.HTTPClient
	UserAgent string
	// Overwrite re-downloads files that already exist locally. When false an
	// existing non-empty file is reused.
	Overwrite bool
}

// NewFetcher returns a Fetcher using client. A nil client uses
// http.DefaultClient.
func NewFetcher(client httputil.HTTPClient) *Fetcher {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &Fetcher{Client: client, UserAgent: DefaultUserAgent, Overwrite: true}
}

// FetchArchive downloads a scene archive into outDir and returns its path.
func (f *Fetcher) FetchArchive(ctx context.Context, rawURL, outDir string) (string, error) {
	return f.fetch(ctx, rawURL, outDir, "archive")
}

// FetchSingleImage downloads one image (or annotation) file into outDir and
// returns its path.
func (f *Fetcher) FetchSingleImage(ctx context.Context, rawURL, outDir string) (string, error) {
	return f.fetch(ctx, rawURL, outDir, "image")
}

// FileName is the local name a URL is saved under.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: %s", ErrNoFileName, rawURL)
	}
	return security.SanitizeFilename(base), nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, outDir, kind string) (string, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(outDir, name)

	if !f.Overwrite {
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			diagf("reusing %s %s (%s)", kind, dest, humanize.Bytes(uint64(info.Size())))
			return dest, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		opsf("download of %s failed: %s", rawURL, resp.Status)
		return "", &StatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if resp.ContentLength > 0 {
		tracef("GET %s: %s, %s", rawURL, resp.Status, humanize.Bytes(uint64(resp.ContentLength)))
	}

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", dest, err)
	}
	elapsed := time.Since(start)
	diagf("downloaded %s %s (%s in %s)", kind, name, humanize.Bytes(uint64(n)), elapsed.Round(time.Millisecond))
	return dest, nil
}

// writeAtomic streams r into dest via a .part file so an interrupted download
// never leaves a truncated file under the final name.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriterSize(out, 1<<20)
	n, err := io.Copy(w, r)
	if err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return n, err
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return n, err
	}
	return n, nil
}
