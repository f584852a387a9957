package webscan

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/fetch"
	"github.com/osintlab/imagehound/internal/imghash"
	"github.com/osintlab/imagehound/internal/target"
)

type memPersister struct {
	data []byte
}

func (m *memPersister) Load() ([]byte, error) {
	if m.data == nil {
		return nil, fs.ErrNotExist
	}
	return m.data, nil
}

func (m *memPersister) Save(data []byte) error {
	m.data = data
	return nil
}

// testPNG returns a small deterministic PNG.
func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestExtractor(t *testing.T) {
	t.Parallel()

	t.Run("collects img and favicon sources with resolution", func(t *testing.T) {
		t.Parallel()

		page := `<html><head>
			<link rel="icon" href="/favicon.png">
		</head><body>
			<img src="photo.jpg">
			<img data-src="https://cdn.example.net/lazy.png">
			<img src="/absolute/banner.webp">
		</body></html>`

		extractor, err := NewExtractor("https://example.com/gallery/")
		if err != nil {
			t.Fatalf("NewExtractor failed: %v", err)
		}
		urls, err := extractor.Extract(strings.NewReader(page))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}

		want := []string{
			"https://example.com/favicon.png",
			"https://example.com/gallery/photo.jpg",
			"https://cdn.example.net/lazy.png",
			"https://example.com/absolute/banner.webp",
		}
		if len(urls) != len(want) {
			t.Fatalf("Extract returned %v, want %v", urls, want)
		}
		for i := range want {
			if urls[i] != want[i] {
				t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
			}
		}
	})

	t.Run("drops unfetchable schemes and duplicates", func(t *testing.T) {
		t.Parallel()

		page := `<body>
			<img src="data:image/png;base64,AAAA">
			<img src="javascript:void(0)">
			<img src="photo.jpg">
			<img data-src="photo.jpg">
			<img src="">
		</body>`

		extractor, err := NewExtractor("https://example.com/")
		if err != nil {
			t.Fatalf("NewExtractor failed: %v", err)
		}
		urls, err := extractor.Extract(strings.NewReader(page))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if len(urls) != 1 || urls[0] != "https://example.com/photo.jpg" {
			t.Errorf("Extract returned %v, want single photo.jpg", urls)
		}
	})
}

func TestScanPage(t *testing.T) {
	t.Parallel()

	imageBytes := testPNG(t)
	fp, err := imghash.Compute(imageBytes)
	if err != nil {
		t.Fatalf("failed to fingerprint test image: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<img src="/images/match.png">
			<img src="/images/vector.svg">
			<img src="/images/missing.png">
		</body></html>`)
	})
	mux.HandleFunc("/images/match.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(imageBytes)
	})
	mux.HandleFunc("/images/missing.png", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store, err := target.Open(&memPersister{})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := store.AddManual(fp[imghash.FamilyMD5], imghash.FamilyMD5, "reference image", nil); err != nil {
		t.Fatalf("failed to seed target: %v", err)
	}

	client, err := fetch.New()
	if err != nil {
		t.Fatalf("failed to build fetch client: %v", err)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := detect.NewEngine(store, detect.NewLog(), detect.WithLogger(quiet))
	scanner := NewScanner(client, engine, WithDelay(0), WithLogger(quiet))

	result, err := scanner.ScanPage(t.Context(), srv.URL+"/", detect.DefaultThreshold)
	if err != nil {
		t.Fatalf("ScanPage failed: %v", err)
	}

	if result.ImagesFound != 3 {
		t.Errorf("ImagesFound = %d, want 3", result.ImagesFound)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (the svg)", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1 (the 404)", result.Failed)
	}
	if result.ImagesScanned != 1 {
		t.Errorf("ImagesScanned = %d, want 1", result.ImagesScanned)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(result.Matches))
	}
	match := result.Matches[0]
	if match.FoundAt != srv.URL+"/images/match.png" {
		t.Errorf("FoundAt = %q", match.FoundAt)
	}
	if match.Provenance != srv.URL+"/" {
		t.Errorf("Provenance = %q", match.Provenance)
	}
	if len(match.MatchReasons) == 0 || match.MatchReasons[0] != "md5 (exact)" {
		t.Errorf("MatchReasons = %v", match.MatchReasons)
	}
}

func TestScanPages(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>no images here</body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>none here either</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store, err := target.Open(&memPersister{})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	client, err := fetch.New()
	if err != nil {
		t.Fatalf("failed to build fetch client: %v", err)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := detect.NewEngine(store, detect.NewLog(), detect.WithLogger(quiet))
	scanner := NewScanner(client, engine, WithDelay(0), WithLogger(quiet))

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/nope"}
	results, err := scanner.ScanPages(t.Context(), urls, detect.DefaultThreshold, 2)
	if err == nil {
		t.Error("ScanPages returned nil error despite a failing page")
	}
	if results[0] == nil || results[1] == nil {
		t.Error("successful pages missing from results")
	}
	if results[2] != nil {
		t.Error("failed page produced a result")
	}
	if results[0].PageURL != urls[0] {
		t.Errorf("results out of input order: %q", results[0].PageURL)
	}
}
