package output

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/walkup/internal/event"
	"github.com/sydlexius/walkup/internal/scan"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePageJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close() //nolint:errcheck
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}

func TestProcessAssemblesPDF(t *testing.T) {
	outDir := t.TempDir()
	tempDir := filepath.Join(outDir, "pages")
	if err := os.Mkdir(tempDir, 0o750); err != nil {
		t.Fatal(err)
	}

	var pages []scan.ScanPage
	for i := 1; i <= 2; i++ {
		path := filepath.Join(tempDir, "page"+string(rune('0'+i))+".jpg")
		writePageJPEG(t, path, 100, 140)
		pages = append(pages, scan.ScanPage{
			Path: path, PageNumber: i,
			Width: 100, Height: 140, XResolution: 100, YResolution: 100,
		})
	}

	res := &scan.Result{
		ID:         "sess-1",
		Pages:      pages,
		Folder:     outDir,
		TempFolder: tempDir,
		ScanCount:  1,
		Date:       time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		ToPDF:      true,
		Shortcut:   scan.ShortcutSavePDF,
		Source:     scan.SourcePlaten,
	}

	p := NewProcessor(nil, false, 0, testLogger())
	outPath, err := p.Process(res)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := filepath.Join(outDir, "scan_2026-08-28_1.pdf")
	if outPath != want {
		t.Errorf("output path = %q, want %q", outPath, want)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("stat PDF: %v", err)
	}
	if info.Size() == 0 {
		t.Error("empty PDF written")
	}

	// Temp pages and their folder are cleaned up after assembly.
	for _, page := range pages {
		if _, err := os.Stat(page.Path); !os.IsNotExist(err) {
			t.Errorf("temp page %s survived", page.Path)
		}
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Error("temp folder survived")
	}
}

func TestProcessImagesWithThumbnails(t *testing.T) {
	outDir := t.TempDir()
	pagePath := filepath.Join(outDir, "scan_1_page001.jpg")
	writePageJPEG(t, pagePath, 640, 480)

	res := &scan.Result{
		ID:        "sess-2",
		Pages:     []scan.ScanPage{{Path: pagePath, PageNumber: 1, Width: 640, Height: 480}},
		Folder:    outDir,
		ScanCount: 1,
		Date:      time.Now(),
		Shortcut:  scan.ShortcutSaveJPEG,
		Source:    scan.SourceAdf,
	}

	p := NewProcessor(nil, true, 320, testLogger())
	outPath, err := p.Process(res)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outPath != pagePath {
		t.Errorf("output path = %q, want first page", outPath)
	}

	// Page stays put and a thumbnail appears next to it.
	if _, err := os.Stat(pagePath); err != nil {
		t.Errorf("page image missing: %v", err)
	}
	thumb := filepath.Join(outDir, ".thumbs", "scan_1_page001.jpg")
	if _, err := os.Stat(thumb); err != nil {
		t.Errorf("thumbnail missing: %v", err)
	}
}

func TestProcessEmptyResultPublishesCanceled(t *testing.T) {
	bus := event.NewBus(testLogger(), 4)
	got := make(chan event.Event, 1)
	bus.Subscribe(event.ScanCanceled, func(e event.Event) { got <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	res := &scan.Result{ID: "sess-3", ScanCount: 2, Date: time.Now()}
	p := NewProcessor(bus, false, 0, testLogger())

	outPath, err := p.Process(res)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outPath != "" {
		t.Errorf("output path = %q, want empty", outPath)
	}

	select {
	case e := <-got:
		if e.Data["session_id"] != "sess-3" {
			t.Errorf("event data = %v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel event never published")
	}
}

func TestPageSizeMM(t *testing.T) {
	page := scan.ScanPage{Width: 2550, Height: 3300, XResolution: 300, YResolution: 300}
	w, h := pageSizeMM(page)
	if w < 215.8 || w > 216.0 {
		t.Errorf("width = %.2fmm, want ~215.9", w)
	}
	if h < 279.3 || h > 279.5 {
		t.Errorf("height = %.2fmm, want ~279.4", h)
	}

	// Unknown dimensions fall back to A4.
	w, h = pageSizeMM(scan.ScanPage{})
	if w != 210 || h != 297 {
		t.Errorf("fallback = %.0fx%.0f, want 210x297", w, h)
	}
}
