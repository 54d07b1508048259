package scan

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ScanPage is one downloaded page of a logical scan. Created exactly once
// per successful download.
type ScanPage struct {
	Path        string
	PageNumber  int
	Width       int
	Height      int
	XResolution int
	YResolution int
}

// PageList is the ordered, append-only page accumulator for one scan
// session. Pages are never removed once appended; a cancellation of a
// later page does not retract earlier ones. The orchestrator owns the
// list and there are no concurrent writers.
type PageList struct {
	pages []ScanPage
}

// Append adds a page to the end of the list.
func (l *PageList) Append(p ScanPage) { l.pages = append(l.pages, p) }

// Pages returns the accumulated pages in download order.
func (l *PageList) Pages() []ScanPage { return l.pages }

// Len returns the number of accumulated pages.
func (l *PageList) Len() int { return len(l.pages) }

// NextPageNumber returns the 1-based number the next downloaded page gets.
func (l *PageList) NextPageNumber() int { return len(l.pages) + 1 }

// PageFilePath builds the deterministic download path for a page. The
// pattern's "%d" token expands to the date; an empty pattern uses "scan".
func PageFilePath(folder, pattern string, scanCount, pageNumber int, date time.Time) string {
	name := pattern
	if name == "" {
		name = "scan"
	}
	name = strings.ReplaceAll(name, "%d", date.Format("2006-01-02"))
	return filepath.Join(folder, fmt.Sprintf("%s_%d_page%03d.jpg", name, scanCount, pageNumber))
}
