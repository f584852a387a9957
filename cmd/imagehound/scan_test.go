package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testPNG returns a small deterministic PNG image.
func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 96, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestScanCmd(t *testing.T) {
	dataDir := t.TempDir()
	exportDir := t.TempDir()
	workDir := t.TempDir()

	imgData := testPNG(t)
	imgPath := filepath.Join(workDir, "poster.png")
	if err := os.WriteFile(imgPath, imgData, 0600); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}

	out, err := runCommand(t, "target", "add", imgPath,
		"-d", "campaign poster", "--tags", "case42",
		"--data-dir", dataDir)
	if err != nil {
		t.Fatalf("target add failed: %v", err)
	}
	if !strings.Contains(out.String(), "Added target_1") {
		t.Errorf("target add output = %q, want Added target_1", out.String())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gallery", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<img src="/img/reused.png">
			<img src="/img/icon.svg">
		</body></html>`)
	})
	mux.HandleFunc("/img/reused.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(imgData) //nolint:errcheck // test handler
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfgPath := filepath.Join(workDir, ".imagehound")
	cfgBody := fmt.Sprintf("export_dir: %s\nscan_delay: 1ms\n", exportDir)
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	outputPath := filepath.Join(workDir, "report.json")
	out, err = runCommand(t, "scan", server.URL+"/gallery",
		"--config", cfgPath, "--data-dir", dataDir, "-o", outputPath)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	summary := out.String()
	if !strings.Contains(summary, "1 match(es)") {
		t.Errorf("scan summary missing match count:\n%s", summary)
	}
	if !strings.Contains(summary, "1 skipped") {
		t.Errorf("scan summary missing skipped vector image:\n%s", summary)
	}

	reportData, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	for _, want := range []string{"target_1", "md5 (exact)", "campaign poster", "/img/reused.png"} {
		if !strings.Contains(string(reportData), want) {
			t.Errorf("report missing %q:\n%s", want, reportData)
		}
	}

	exports, err := filepath.Glob(filepath.Join(exportDir, "report_scan_*.json"))
	if err != nil || len(exports) != 1 {
		t.Fatalf("expected one session export in %s, got %v (err %v)", exportDir, exports, err)
	}

	// The session ends up in the history database.
	out, err = runCommand(t, "history", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out.String(), "scan") || !strings.Contains(out.String(), "1 match(es)") {
		t.Errorf("history output missing scan session:\n%s", out.String())
	}

	out, err = runCommand(t, "history", "target", "target_1", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("history target failed: %v", err)
	}
	if !strings.Contains(out.String(), "MATCH target_1") {
		t.Errorf("history target output missing detection:\n%s", out.String())
	}

	out, err = runCommand(t, "stats", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	for _, want := range []string{"Targets:    1", "Sessions:   1", "Detections: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("stats output missing %q:\n%s", want, out.String())
		}
	}
}

func TestScanCmdNoPages(t *testing.T) {
	_, err := runCommand(t, "scan", "--data-dir", t.TempDir())
	if err == nil {
		t.Fatal("scan without pages succeeded")
	}
	if !strings.Contains(err.Error(), "no pages to scan") {
		t.Errorf("error = %v", err)
	}
}

func TestScanCmdListFile(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "pages.txt")
	body := "# comment line\n\nhttps://one.example\nhttps://two.example\n"
	if err := os.WriteFile(listPath, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write list file: %v", err)
	}

	cmd := NewScanCmd()
	if err := cmd.Flags().Set("list", listPath); err != nil {
		t.Fatalf("failed to set list flag: %v", err)
	}
	urls, err := collectPageURLs(cmd, []string{"https://zero.example"})
	if err != nil {
		t.Fatalf("collectPageURLs failed: %v", err)
	}
	want := []string{"https://zero.example", "https://one.example", "https://two.example"}
	if len(urls) != len(want) {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestCheckCmd(t *testing.T) {
	dataDir := t.TempDir()
	workDir := t.TempDir()

	imgData := testPNG(t)
	imgPath := filepath.Join(workDir, "suspect.png")
	if err := os.WriteFile(imgPath, imgData, 0600); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}

	if _, err := runCommand(t, "target", "add", imgPath, "-d", "known image",
		"--data-dir", dataDir); err != nil {
		t.Fatalf("target add failed: %v", err)
	}

	out, err := runCommand(t, "check", imgPath, "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	for _, want := range []string{"Fingerprint of", "md5:", "phash:", "MATCH target_1", "md5 (exact)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("check output missing %q:\n%s", want, out.String())
		}
	}
}
