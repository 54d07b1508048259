// Package output turns a finished scan session's page list into its final
// artifacts: a single assembled PDF for PDF shortcuts, or the page JPEGs
// left in place, with optional preview thumbnails.
package output

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/sydlexius/walkup/internal/event"
	"github.com/sydlexius/walkup/internal/imaging"
	"github.com/sydlexius/walkup/internal/scan"
)

const mmPerInch = 25.4

// Processor post-processes scan results.
type Processor struct {
	bus           *event.Bus
	logger        *slog.Logger
	thumbnails    bool
	thumbnailEdge int
}

// NewProcessor creates a processor. bus may be nil to skip notifications.
func NewProcessor(bus *event.Bus, thumbnails bool, thumbnailEdge int, logger *slog.Logger) *Processor {
	if thumbnailEdge <= 0 {
		thumbnailEdge = 320
	}
	return &Processor{
		bus:           bus,
		logger:        logger.With(slog.String("component", "output")),
		thumbnails:    thumbnails,
		thumbnailEdge: thumbnailEdge,
	}
}

// Process finalizes one scan result and returns the primary output path:
// the assembled PDF, or the first page image. An empty result (all pages
// canceled) produces nothing.
func (p *Processor) Process(res *scan.Result) (string, error) {
	if len(res.Pages) == 0 {
		p.logger.Info("no pages to process", slog.Int("scan", res.ScanCount))
		p.publish(event.ScanCanceled, res, "")
		return "", nil
	}

	if p.bus != nil {
		for _, page := range res.Pages {
			p.bus.Publish(event.PageScanned, map[string]any{
				"session_id": res.ID,
				"page":       page.PageNumber,
				"path":       page.Path,
			})
		}
	}

	var outPath string
	var err error
	if res.ToPDF {
		outPath, err = p.assemblePDF(res)
	} else {
		outPath = res.Pages[0].Path
		err = p.finishImages(res)
	}
	if err != nil {
		return "", err
	}

	p.logger.Info("scan output ready",
		slog.String("path", outPath),
		slog.Int("pages", len(res.Pages)),
		slog.Bool("pdf", res.ToPDF))
	p.publish(event.ScanCompleted, res, outPath)
	return outPath, nil
}

// assemblePDF places each page JPEG at its reported DPI into a fresh PDF
// in the final folder, then removes the temporary per-page files.
func (p *Processor) assemblePDF(res *scan.Result) (string, error) {
	outPath := filepath.Join(res.Folder,
		fmt.Sprintf("scan_%s_%d.pdf", res.Date.Format("2006-01-02"), res.ScanCount))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	for _, page := range res.Pages {
		wmm, hmm := pageSizeMM(page)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: wmm, Ht: hmm})
		pdf.ImageOptions(page.Path, 0, 0, wmm, hmm, false,
			fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("writing PDF: %w", err)
	}

	for _, page := range res.Pages {
		if err := os.Remove(page.Path); err != nil {
			p.logger.Warn("removing temp page", "path", page.Path, "error", err)
		}
	}
	if res.TempFolder != "" {
		if err := os.Remove(res.TempFolder); err != nil {
			p.logger.Warn("removing temp folder", "path", res.TempFolder, "error", err)
		}
	}
	return outPath, nil
}

// finishImages leaves page JPEGs where the driver put them and writes
// thumbnails alongside when enabled.
func (p *Processor) finishImages(res *scan.Result) error {
	if !p.thumbnails {
		return nil
	}

	thumbDir := filepath.Join(res.Folder, ".thumbs")
	if err := os.MkdirAll(thumbDir, 0o750); err != nil {
		return fmt.Errorf("creating thumbnail folder: %w", err)
	}
	for _, page := range res.Pages {
		dst := filepath.Join(thumbDir, filepath.Base(page.Path))
		if err := imaging.Thumbnail(page.Path, dst, p.thumbnailEdge); err != nil {
			// Thumbnails are cosmetic; a bad page image must not lose the scan.
			p.logger.Warn("thumbnail failed", "path", page.Path, "error", err)
		}
	}
	return nil
}

// pageSizeMM converts a page's pixel dimensions at its reported DPI to
// millimeters, falling back to A4 when dimensions are unknown.
func pageSizeMM(page scan.ScanPage) (w, h float64) {
	if page.Width <= 0 || page.Height <= 0 || page.XResolution <= 0 || page.YResolution <= 0 {
		return 210, 297
	}
	w = float64(page.Width) / float64(page.XResolution) * mmPerInch
	h = float64(page.Height) / float64(page.YResolution) * mmPerInch
	return w, h
}

func (p *Processor) publish(t event.Type, res *scan.Result, outPath string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(t, map[string]any{
		"session_id": res.ID,
		"scan_count": res.ScanCount,
		"pages":      len(res.Pages),
		"pdf":        res.ToPDF,
		"source":     string(res.Source),
		"shortcut":   string(res.Shortcut),
		"path":       outPath,
	})
}
