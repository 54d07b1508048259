package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Options configures scan sessions.
type Options struct {
	OutputDir   string
	TempDir     string // parent for per-page PDF folders; defaults to os.TempDir
	FilePattern string
	Resolution  int
	Width       int // requested; 0 means device maximum
	Height      int // requested; 0 means device maximum
	Duplex      bool
}

// Result is one finished logical scan handed to post-processing.
type Result struct {
	ID         string
	Pages      []ScanPage
	Folder     string // final output folder
	TempFolder string // per-page folder for PDF shortcuts, empty otherwise
	ScanCount  int
	Date       time.Time
	ToPDF      bool
	Shortcut   Shortcut
	Source     InputSource
	ResumeTag  string // freshness token to resume the outer event loop from
}

// Session assembles configuration, picks destination and content type, and
// runs the listener, job driver and continuation loop for one scan at a
// time. One logical thread of control: all device interactions are
// sequential blocking round trips.
type Session struct {
	client   DeviceClient
	listener *Listener
	driver   *Driver
	caps     DeviceCapabilities
	opts     Options
	logger   *slog.Logger

	scanCount int
}

// NewSession creates a scan session orchestrator.
func NewSession(client DeviceClient, listener *Listener, driver *Driver, caps DeviceCapabilities, opts Options, logger *slog.Logger) *Session {
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultResolution
	}
	return &Session{
		client:   client,
		listener: listener,
		driver:   driver,
		caps:     caps,
		opts:     opts,
		logger:   logger.With(slog.String("component", "session")),
	}
}

// WalkupScan runs one interactive walk-up scan triggered by a panel event.
// It reads the user's destination selection, routes PDF shortcuts through
// a temporary per-page folder, runs the job, and loops for further flatbed
// pages when the device supports it. Returns ErrDestinationTimeout when
// the user never finishes selecting; no job is submitted in that case.
func (s *Session) WalkupScan(ctx context.Context, ev Event) (*Result, error) {
	dest, err := s.listener.WaitForDestination(ctx, ev.DestinationRef)
	if err != nil {
		return nil, err
	}

	if !dest.Shortcut.Known() {
		s.logger.Warn("unrecognized destination shortcut, treating as image",
			slog.String("shortcut", string(dest.Shortcut)))
	}
	toPDF := dest.Shortcut.ProducesPDF()

	status, err := s.client.GetScanStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading scan status: %w", err)
	}
	source := status.InputSource()
	duplex := dest.PlexMode == PlexDuplex

	res, err := s.newResult(toPDF, dest.Shortcut, source)
	if err != nil {
		return nil, err
	}
	folder := res.Folder
	if toPDF {
		folder = res.TempFolder
	}

	settings := s.buildSettings(source, dest.Shortcut.ContentType(), duplex)
	s.logger.Info("starting walk-up scan",
		slog.String("shortcut", string(dest.Shortcut)),
		slog.String("source", string(source)),
		slog.Bool("duplex", duplex),
		slog.Bool("pdf", toPDF))

	pages := &PageList{}
	state, err := s.driver.ExecuteScanJob(ctx, settings, folder, res.ScanCount, pages, s.opts.FilePattern)
	if err != nil {
		return nil, err
	}

	res.ResumeTag = ev.Etag
	if state == JobCompleted {
		tag, err := s.continueScan(ctx, ev.DestinationRef, ev, settings, folder, res.ScanCount, pages)
		res.ResumeTag = tag
		if err != nil {
			return nil, err
		}
	}

	res.Pages = pages.Pages()
	return res, nil
}

// AdfAutoScan runs one unattended feeder scan: it assumes paper is already
// loaded (callers gate on WaitAdfLoaded) and never continues; the feeder
// pulls all its pages within a single job.
func (s *Session) AdfAutoScan(ctx context.Context) (*Result, error) {
	res, err := s.newResult(false, "", SourceAdf)
	if err != nil {
		return nil, err
	}

	settings := s.buildSettings(SourceAdf, ContentDocument, s.opts.Duplex)
	s.logger.Info("starting feeder auto-scan", slog.Bool("duplex", settings.Duplex))

	pages := &PageList{}
	if _, err := s.driver.ExecuteScanJob(ctx, settings, res.Folder, res.ScanCount, pages, s.opts.FilePattern); err != nil {
		return nil, err
	}

	res.Pages = pages.Pages()
	return res, nil
}

// SingleScan runs one on-demand flatbed scan with no continuation.
func (s *Session) SingleScan(ctx context.Context) (*Result, error) {
	res, err := s.newResult(false, "", SourcePlaten)
	if err != nil {
		return nil, err
	}

	settings := s.buildSettings(SourcePlaten, ContentDocument, false)
	s.logger.Info("starting single flatbed scan")

	pages := &PageList{}
	if _, err := s.driver.ExecuteScanJob(ctx, settings, res.Folder, res.ScanCount, pages, s.opts.FilePattern); err != nil {
		return nil, err
	}

	res.Pages = pages.Pages()
	return res, nil
}

// buildSettings clamps the requested extents against the capability
// maximum for the chosen input source and plex mode.
func (s *Session) buildSettings(source InputSource, content ContentType, duplex bool) ScanJobSettings {
	maxW, maxH := s.caps.MaxExtent(source, duplex)
	return ScanJobSettings{
		Source:      source,
		ContentType: content,
		Resolution:  s.opts.Resolution,
		Width:       EffectiveExtent(s.opts.Width, maxW),
		Height:      EffectiveExtent(s.opts.Height, maxH),
		Duplex:      duplex,
	}
}

// newResult allocates the next scan count and folders for one session.
func (s *Session) newResult(toPDF bool, shortcut Shortcut, source InputSource) (*Result, error) {
	s.scanCount++
	res := &Result{
		ID:        uuid.NewString(),
		Folder:    s.opts.OutputDir,
		ScanCount: s.scanCount,
		Date:      time.Now(),
		ToPDF:     toPDF,
		Shortcut:  shortcut,
		Source:    source,
	}
	if err := os.MkdirAll(res.Folder, 0o750); err != nil {
		return nil, fmt.Errorf("creating output folder: %w", err)
	}
	if toPDF {
		tmp, err := os.MkdirTemp(s.opts.TempDir, "walkup-pages-")
		if err != nil {
			return nil, fmt.Errorf("creating temp page folder: %w", err)
		}
		res.TempFolder = tmp
	}
	return res, nil
}
