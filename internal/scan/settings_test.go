package scan

import (
	"path/filepath"
	"testing"
	"time"
)

func TestEffectiveExtent(t *testing.T) {
	cases := []struct {
		name      string
		requested int
		max       int
		want      int
	}{
		{"within bounds", 2000, 2550, 2000},
		{"at maximum", 2550, 2550, 2550},
		{"over maximum clamps", 9999, 2550, 2550},
		{"zero means maximum", 0, 2550, 2550},
		{"negative means maximum", -1, 2550, 2550},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveExtent(tc.requested, tc.max); got != tc.want {
				t.Errorf("EffectiveExtent(%d, %d) = %d, want %d", tc.requested, tc.max, got, tc.want)
			}
		})
	}
}

func TestMaxExtentPerSourceAndPlex(t *testing.T) {
	caps := DeviceCapabilities{
		PlatenMaxWidth: 2550, PlatenMaxHeight: 3508,
		AdfSimplexMaxWidth: 2550, AdfSimplexMaxHeight: 4200,
		AdfDuplexMaxWidth: 2550, AdfDuplexMaxHeight: 3300,
	}

	if w, h := caps.MaxExtent(SourcePlaten, false); w != 2550 || h != 3508 {
		t.Errorf("platen extent = %dx%d", w, h)
	}
	if w, h := caps.MaxExtent(SourceAdf, false); w != 2550 || h != 4200 {
		t.Errorf("adf simplex extent = %dx%d", w, h)
	}
	if w, h := caps.MaxExtent(SourceAdf, true); w != 2550 || h != 3300 {
		t.Errorf("adf duplex extent = %dx%d", w, h)
	}
	// Duplex flag is meaningless on the flatbed.
	if w, h := caps.MaxExtent(SourcePlaten, true); w != 2550 || h != 3508 {
		t.Errorf("platen duplex extent = %dx%d", w, h)
	}
}

func TestPageFilePath(t *testing.T) {
	date := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	got := PageFilePath("/scans", "", 3, 2, date)
	want := filepath.Join("/scans", "scan_3_page002.jpg")
	if got != want {
		t.Errorf("default pattern: got %q, want %q", got, want)
	}

	got = PageFilePath("/scans", "inbox-%d", 1, 1, date)
	want = filepath.Join("/scans", "inbox-2026-08-28_1_page001.jpg")
	if got != want {
		t.Errorf("date pattern: got %q, want %q", got, want)
	}
}

func TestShortcutRouting(t *testing.T) {
	pdf := []Shortcut{ShortcutSavePDF, ShortcutEmailPDF, ShortcutSaveDocument1}
	for _, s := range pdf {
		if !s.ProducesPDF() {
			t.Errorf("%s should produce PDF", s)
		}
	}
	for _, s := range []Shortcut{ShortcutSaveJPEG, ShortcutSavePhoto1, Shortcut("Mystery")} {
		if s.ProducesPDF() {
			t.Errorf("%s should not produce PDF", s)
		}
	}
	if ShortcutSavePhoto1.ContentType() != ContentPhoto {
		t.Error("SavePhoto1 should scan as photo content")
	}
	if ShortcutSavePDF.ContentType() != ContentDocument {
		t.Error("SavePDF should scan as document content")
	}
}
