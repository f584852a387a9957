package webscan

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/imghash"
	"github.com/osintlab/imagehound/internal/imgmeta"
)

// Defaults for page scanning behavior.
const (
	// DefaultDelay is the politeness pause between image downloads from
	// the same page.
	DefaultDelay = 100 * time.Millisecond

	// DefaultConcurrency bounds parallel page scans in a batch.
	DefaultConcurrency = 3
)

// defaultIgnoredExtensions lists URL path extensions that are never
// fetched: vector and animated formats hash unreliably, and the rest are
// not images at all.
var defaultIgnoredExtensions = []string{".svg", ".gif", ".ico", ".pdf", ".js", ".css"}

// Fetcher downloads raw bytes for a URL or local path.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// PageResult summarizes one page scan.
type PageResult struct {
	// PageURL is the scanned page.
	PageURL string

	// ImagesFound is the number of candidate URLs extracted from the page.
	ImagesFound int

	// ImagesScanned is the number of candidates actually fingerprinted.
	ImagesScanned int

	// Skipped counts candidates dropped by the ignored-extension filter.
	Skipped int

	// Failed counts candidates that could not be fetched or decoded.
	Failed int

	// Matches holds the accepted detections, in evaluation order.
	Matches []detect.MatchRecord
}

// Scanner fetches pages, extracts candidate images, and evaluates each
// one against the target store.
type Scanner struct {
	fetcher fetcherPair
	engine  *detect.Engine
	logger  *slog.Logger
	delay   time.Duration
	ignored map[string]bool
}

// fetcherPair separates page fetching from image fetching so tests can
// fault-inject one side. Both default to the same client.
type fetcherPair struct {
	page  Fetcher
	image Fetcher
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithDelay sets the pause between image downloads. Zero disables it.
func WithDelay(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.delay = d }
}

// WithIgnoredExtensions replaces the ignored-extension set.
func WithIgnoredExtensions(exts []string) ScannerOption {
	return func(s *Scanner) {
		s.ignored = make(map[string]bool, len(exts))
		for _, ext := range exts {
			s.ignored[strings.ToLower(ext)] = true
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = logger }
}

// WithImageFetcher routes image downloads through a separate fetcher.
func WithImageFetcher(f Fetcher) ScannerOption {
	return func(s *Scanner) { s.fetcher.image = f }
}

// NewScanner creates a Scanner downloading through fetcher and evaluating
// through engine.
func NewScanner(fetcher Fetcher, engine *detect.Engine, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		fetcher: fetcherPair{page: fetcher, image: fetcher},
		engine:  engine,
		delay:   DefaultDelay,
	}
	WithIgnoredExtensions(defaultIgnoredExtensions)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ScanPage downloads the page, extracts its candidate images, and
// evaluates each against the store at the given threshold. Failures on
// individual images are counted and logged, never fatal; only failing to
// retrieve or parse the page itself returns an error.
func (s *Scanner) ScanPage(ctx context.Context, pageURL string, threshold int) (*PageResult, error) {
	body, err := s.fetcher.page.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve page: %w", err)
	}

	extractor, err := NewExtractor(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	candidates, err := extractor.Extract(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	result := &PageResult{
		PageURL:     pageURL,
		ImagesFound: len(candidates),
		Matches:     make([]detect.MatchRecord, 0),
	}
	s.logger.Info("scanning page", "url", pageURL, "images", len(candidates))

	for i, imageURL := range candidates {
		if s.ignoredURL(imageURL) {
			result.Skipped++
			continue
		}
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		matches, err := s.scanImage(ctx, imageURL, pageURL, threshold)
		if err != nil {
			result.Failed++
			s.logger.Warn("skipping image", "url", imageURL, "error", err)
			continue
		}
		result.ImagesScanned++
		result.Matches = append(result.Matches, matches...)
	}

	return result, nil
}

// ScanPages scans several pages concurrently. Results keep the order of
// the input URLs; a page that fails carries a nil result and the first
// failure is returned after every page has been attempted. One broken
// page must not abort a batch, so the group does not cancel siblings.
func (s *Scanner) ScanPages(ctx context.Context, pageURLs []string, threshold, concurrency int) ([]*PageResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*PageResult, len(pageURLs))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, pageURL := range pageURLs {
		g.Go(func() error {
			res, err := s.ScanPage(ctx, pageURL, threshold)
			if err != nil {
				return fmt.Errorf("%s: %w", pageURL, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// scanImage fetches and fingerprints one candidate and evaluates it.
func (s *Scanner) scanImage(ctx context.Context, imageURL, pageURL string, threshold int) ([]detect.MatchRecord, error) {
	data, err := s.fetcher.image.Fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	fp, err := imghash.Compute(data)
	if err != nil {
		return nil, err
	}

	return s.engine.Evaluate(detect.Candidate{
		Fingerprint: fp,
		Locator:     imageURL,
		Provenance:  pageURL,
		Meta:        imgmeta.Extract(data),
	}, threshold), nil
}

// ignoredURL reports whether the URL's path extension is filtered out.
// Query strings and fragments do not defeat the filter.
func (s *Scanner) ignoredURL(imageURL string) bool {
	u, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ext != "" && s.ignored[ext]
}
