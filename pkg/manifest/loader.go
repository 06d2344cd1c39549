package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sambabib/depconfusion/pkg/errdefs"
	"github.com/sambabib/depconfusion/pkg/logger"
)

const (
	// FileName is the manifest file every source must point at.
	FileName = "package.json"

	defaultTimeout = 10 * time.Second
	rawGitHubHost  = "raw.githubusercontent.com"
)

// Source identifies where a manifest is read from. Exactly one field must be set.
type Source struct {
	URL  string
	Path string
}

// String returns the URL or path of the source.
func (s Source) String() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// Validate checks that exactly one of URL and Path is set.
func (s Source) Validate() error {
	switch {
	case s.URL == "" && s.Path == "":
		return fmt.Errorf("%w: a manifest URL or file path is required", errdefs.ErrInvalidInput)
	case s.URL != "" && s.Path != "":
		return fmt.Errorf("%w: manifest URL and file path are mutually exclusive", errdefs.ErrInvalidInput)
	}
	return nil
}

// Loader fetches and parses manifests.
type Loader struct {
	HTTPClient *http.Client
	Log        *logger.Logger
}

// NewLoader creates a Loader whose HTTP client gives up after timeout.
// A zero timeout uses the default of 10 seconds.
func NewLoader(timeout time.Duration, log *logger.Logger) *Loader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		HTTPClient: &http.Client{Timeout: timeout},
		Log:        log,
	}
}

// Load reads the manifest described by src.
func (l *Loader) Load(ctx context.Context, src Source) (*Manifest, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.URL != "" {
		u, err := NormalizeURL(src.URL)
		if err != nil {
			return nil, err
		}
		return l.fetch(ctx, u)
	}
	return l.readFile(src.Path)
}

func (l *Loader) readFile(path string) (*Manifest, error) {
	l.Log.Debugf("Manifest: Reading %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errdefs.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (*Manifest, error) {
	l.Log.Debugf("Manifest: Fetching %s", rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrInterrupted, ctx.Err())
		}
		return nil, fmt.Errorf("%w: fetching %s: %v", errdefs.ErrNetwork, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: status %d", errdefs.ErrNetwork, rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errdefs.ErrNetwork, rawURL, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	return m, nil
}

// NormalizeURL upgrades http to https and rewrites GitHub blob views to raw content URLs.
// The result must use https and point at package.json.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "http://") {
		s = "https://" + strings.TrimPrefix(s, "http://")
	}
	if !strings.HasPrefix(s, "https://") {
		return "", fmt.Errorf("%w: %q is not an https URL", errdefs.ErrInvalidInput, raw)
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	if u.Host == "github.com" || u.Host == "www.github.com" {
		// /owner/repo/blob/ref/path -> raw.githubusercontent.com/owner/repo/ref/path
		parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
		if len(parts) > 3 && (parts[2] == "blob" || parts[2] == "raw") {
			parts = append(parts[:2], parts[3:]...)
			u.Host = rawGitHubHost
			u.Path = "/" + strings.Join(parts, "/")
			u.RawQuery = ""
			u.Fragment = ""
		}
	}

	if !strings.HasSuffix(u.Path, "/"+FileName) {
		return "", fmt.Errorf("%w: %q does not point at %s", errdefs.ErrInvalidInput, raw, FileName)
	}
	return u.String(), nil
}
