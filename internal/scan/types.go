package scan

import (
	"context"
	"errors"
	"strings"
)

// InputSource identifies where the device pulls paper from.
type InputSource string

// Known input sources.
const (
	SourcePlaten InputSource = "Platen"
	SourceAdf    InputSource = "Adf"
)

// PlexMode is the sidedness the user selected at the panel.
type PlexMode string

// Known plex modes. PlexUnset means the destination did not report one.
const (
	PlexSimplex PlexMode = "Simplex"
	PlexDuplex  PlexMode = "Duplex"
	PlexUnset   PlexMode = ""
)

// ContentType hints the device's image pipeline for the scan.
type ContentType string

// Known content types.
const (
	ContentDocument ContentType = "Document"
	ContentPhoto    ContentType = "Photo"
)

// Shortcut is the action the user picked at the device panel.
type Shortcut string

// Known destination shortcuts. Anything else is treated as an image
// shortcut with a warning; new firmware adds shortcuts faster than we do.
const (
	ShortcutSavePDF       Shortcut = "SavePDF"
	ShortcutEmailPDF      Shortcut = "EmailPDF"
	ShortcutSaveDocument1 Shortcut = "SaveDocument1"
	ShortcutSaveJPEG      Shortcut = "SaveJPEG"
	ShortcutSavePhoto1    Shortcut = "SavePhoto1"
)

// ProducesPDF reports whether this shortcut routes pages into PDF assembly.
func (s Shortcut) ProducesPDF() bool {
	switch s {
	case ShortcutSavePDF, ShortcutEmailPDF, ShortcutSaveDocument1:
		return true
	}
	return false
}

// Known reports whether the shortcut is one the workflow recognizes.
func (s Shortcut) Known() bool {
	switch s {
	case ShortcutSavePDF, ShortcutEmailPDF, ShortcutSaveDocument1,
		ShortcutSaveJPEG, ShortcutSavePhoto1:
		return true
	}
	return false
}

// ContentType maps the shortcut to the scan content type.
func (s Shortcut) ContentType() ContentType {
	if s == ShortcutSavePhoto1 {
		return ContentPhoto
	}
	return ContentDocument
}

// Destination is the user's selection at the device panel, read once per
// scan attempt.
type Destination struct {
	Shortcut Shortcut
	PlexMode PlexMode
}

// EventCategory classifies a device event-table entry.
type EventCategory string

// Event categories the workflow cares about.
const (
	CategoryScan EventCategory = "ScanEvent"
)

// Event is one device-reported occurrence from the event table. Immutable
// once read. Etag is the freshness token of the table fetch that produced
// it, used to resume polling without re-observing the same entry.
type Event struct {
	Category       EventCategory
	DestinationRef string
	CompletionRef  string
	Etag           string
}

// IsScanEvent reports whether the entry is flagged as a scan-type event.
func (e Event) IsScanEvent() bool { return e.Category == CategoryScan }

// MatchesDestination reports whether the event is tied to the given
// destination resource.
func (e Event) MatchesDestination(destRef string) bool {
	return destRef != "" && strings.Contains(e.DestinationRef, destRef)
}

// EventTable is one snapshot of the device's event table.
type EventTable struct {
	Etag   string
	Events []Event
}

// CompletionKind classifies the walk-up completion event resource.
type CompletionKind string

// Known completion event kinds.
const (
	CompHostSelected         CompletionKind = "HostSelected"
	CompScanRequested        CompletionKind = "ScanRequested"
	CompScanNewPageRequested CompletionKind = "ScanNewPageRequested"
	CompScanPagesComplete    CompletionKind = "ScanPagesComplete"
)

// JobState is the device-reported lifecycle state of a scan job.
type JobState string

// Known job states. Unrecognized states are logged and waited out.
const (
	JobProcessing JobState = "Processing"
	JobCompleted  JobState = "Completed"
	JobCanceled   JobState = "Canceled"
)

// PageState is the device-reported state of the job's current page.
type PageState string

// PageReadyToUpload means the page binary can be downloaded now.
const PageReadyToUpload PageState = "ReadyToUpload"

// Job is one immutable snapshot of a device-side scan job. The driver
// never mutates a snapshot, only replaces it with a fresh fetch.
type Job struct {
	State       JobState
	PageState   PageState
	PageNumber  int
	BinaryRef   string
	ImageWidth  int
	ImageHeight int
	XResolution int
	YResolution int
}

// AdfState is the document feeder's paper sensor state.
type AdfState string

// Known ADF states.
const (
	AdfLoaded AdfState = "Loaded"
	AdfEmpty  AdfState = "Empty"
)

// ScanStatus is a snapshot of the device's scanner status resource.
type ScanStatus struct {
	ScannerState string
	AdfState     AdfState
}

// InputSource derives the active input source from the feeder sensor:
// paper in the feeder wins over the flatbed.
func (s ScanStatus) InputSource() InputSource {
	if s.AdfState == AdfLoaded {
		return SourceAdf
	}
	return SourcePlaten
}

// DeviceClient is the capability surface of the device protocol adapter
// consumed by the workflow. Each call is a single request/response with no
// retries; transport failures propagate to the caller.
type DeviceClient interface {
	SubmitJob(ctx context.Context, settings ScanJobSettings) (string, error)
	GetJob(ctx context.Context, jobRef string) (*Job, error)
	GetEvents(ctx context.Context, etag string, timeout int) (EventTable, error)
	GetCompletionEvent(ctx context.Context, compEventRef string) (CompletionKind, error)
	GetDestination(ctx context.Context, destRef string) (*Destination, error)
	DownloadPage(ctx context.Context, binaryRef, destPath string) (string, error)
	GetScanStatus(ctx context.Context) (*ScanStatus, error)
}

// ErrDestinationTimeout is returned when the user never finishes picking a
// destination at the panel; the session aborts cleanly with no job
// submitted.
var ErrDestinationTimeout = errors.New("destination selection timed out")
