package device

import (
	"encoding/xml"

	"github.com/sydlexius/walkup/internal/scan"
)

// Wire types for the device's XML resources. Element matching is by local
// name; the device's namespace prefixes are ignored on decode.

type eventTableDoc struct {
	XMLName xml.Name   `xml:"EventTable"`
	Events  []eventDoc `xml:"Event"`
}

type eventDoc struct {
	Category string       `xml:"UnqualifiedEventCategory"`
	Payloads []payloadDoc `xml:"Payload"`
}

type payloadDoc struct {
	ResourceURI  string `xml:"ResourceURI"`
	ResourceType string `xml:"ResourceType"`
}

// Payload resource types distinguishing the two references a scan event
// can carry.
const (
	resourceTypeDestination     = "WalkupScanToCompDestination"
	resourceTypeCompletionEvent = "WalkupScanToCompEvent"
)

func (d eventDoc) toEvent() scan.Event {
	ev := scan.Event{Category: scan.EventCategory(d.Category)}
	for _, p := range d.Payloads {
		switch p.ResourceType {
		case resourceTypeDestination:
			ev.DestinationRef = p.ResourceURI
		case resourceTypeCompletionEvent:
			ev.CompletionRef = p.ResourceURI
		}
	}
	return ev
}

type compEventDoc struct {
	XMLName   xml.Name `xml:"WalkupScanToCompEvent"`
	EventType string   `xml:"WalkupScanToCompEventType"`
}

type destinationDoc struct {
	XMLName  xml.Name `xml:"WalkupScanToCompDestination"`
	Hostname string   `xml:"Hostname"`
	Name     string   `xml:"Name"`
	LinkType string   `xml:"LinkType"`
	Settings *struct {
		Shortcut     string `xml:"Shortcut"`
		ScanPlexMode string `xml:"ScanPlexMode"`
	} `xml:"WalkupScanToCompSettings"`
}

type jobDoc struct {
	XMLName xml.Name `xml:"Job"`
	State   string   `xml:"JobState"`
	ScanJob struct {
		PreScanPage *struct {
			PageState  string `xml:"PageState"`
			PageNumber int    `xml:"PageNumber"`
			BinaryURL  string `xml:"BinaryURL"`
			BufferInfo struct {
				ImageWidth   int `xml:"ImageWidth"`
				ImageHeight  int `xml:"ImageHeight"`
				ScanSettings struct {
					XResolution int `xml:"XResolution"`
					YResolution int `xml:"YResolution"`
				} `xml:"ScanSettings"`
			} `xml:"BufferInfo"`
		} `xml:"PreScanPage"`
	} `xml:"ScanJob"`
}

func (d *jobDoc) toJob() *scan.Job {
	job := &scan.Job{State: scan.JobState(d.State)}
	if p := d.ScanJob.PreScanPage; p != nil {
		job.PageState = scan.PageState(p.PageState)
		job.PageNumber = p.PageNumber
		job.BinaryRef = p.BinaryURL
		job.ImageWidth = p.BufferInfo.ImageWidth
		job.ImageHeight = p.BufferInfo.ImageHeight
		job.XResolution = p.BufferInfo.ScanSettings.XResolution
		job.YResolution = p.BufferInfo.ScanSettings.YResolution
	}
	return job
}

type scanStatusDoc struct {
	XMLName      xml.Name `xml:"ScanStatus"`
	ScannerState string   `xml:"ScannerState"`
	AdfState     string   `xml:"AdfState"`
}

type scanCapsDoc struct {
	XMLName xml.Name `xml:"ScanCaps"`
	Platen  struct {
		InputSourceCaps sourceCapsDoc `xml:"InputSourceCaps"`
		MultiItemScan   bool          `xml:"MultiItemScan"`
	} `xml:"Platen"`
	Adf struct {
		InputSourceCaps sourceCapsDoc `xml:"InputSourceCaps"`
		Duplexer        *struct {
			InputSourceCaps sourceCapsDoc `xml:"InputSourceCaps"`
		} `xml:"AdfDuplexer"`
	} `xml:"Adf"`
}

type sourceCapsDoc struct {
	MaxWidth  int `xml:"MaxWidth"`
	MaxHeight int `xml:"MaxHeight"`
}

func (d *scanCapsDoc) toCapabilities() *scan.DeviceCapabilities {
	caps := &scan.DeviceCapabilities{
		PlatenMaxWidth:      d.Platen.InputSourceCaps.MaxWidth,
		PlatenMaxHeight:     d.Platen.InputSourceCaps.MaxHeight,
		AdfSimplexMaxWidth:  d.Adf.InputSourceCaps.MaxWidth,
		AdfSimplexMaxHeight: d.Adf.InputSourceCaps.MaxHeight,
		MultiItemPlaten:     d.Platen.MultiItemScan,
	}
	if dup := d.Adf.Duplexer; dup != nil {
		caps.AdfDuplexMaxWidth = dup.InputSourceCaps.MaxWidth
		caps.AdfDuplexMaxHeight = dup.InputSourceCaps.MaxHeight
	} else {
		caps.AdfDuplexMaxWidth = d.Adf.InputSourceCaps.MaxWidth
		caps.AdfDuplexMaxHeight = d.Adf.InputSourceCaps.MaxHeight
	}
	return caps
}

// registrationDoc is the body POSTed to register this host as a walk-up
// destination.
type registrationDoc struct {
	XMLName  xml.Name `xml:"WalkupScanToCompDestination"`
	Hostname string   `xml:"Hostname"`
	Name     string   `xml:"Name"`
	LinkType string   `xml:"LinkType"`
}

// jobRequestDoc is the body POSTed to submit a scan job.
type jobRequestDoc struct {
	XMLName     xml.Name `xml:"ScanSettings"`
	XResolution int      `xml:"XResolution"`
	YResolution int      `xml:"YResolution"`
	XStart      int      `xml:"XStart"`
	YStart      int      `xml:"YStart"`
	Width       int      `xml:"Width"`
	Height      int      `xml:"Height"`
	Format      string   `xml:"Format"`
	ColorSpace  string   `xml:"ColorSpace"`
	BitDepth    int      `xml:"BitDepth"`
	InputSource string   `xml:"InputSource"`
	ContentType string   `xml:"ContentType"`
	AdfOptions  []string `xml:"AdfOptions>AdfOption,omitempty"`
}

func newJobRequestDoc(s scan.ScanJobSettings) jobRequestDoc {
	doc := jobRequestDoc{
		XResolution: s.Resolution,
		YResolution: s.Resolution,
		Width:       s.Width,
		Height:      s.Height,
		Format:      "Jpeg",
		ColorSpace:  "Color",
		BitDepth:    8,
		InputSource: string(s.Source),
		ContentType: string(s.ContentType),
	}
	if s.Source == scan.SourceAdf && s.Duplex {
		doc.AdfOptions = []string{"Duplex"}
	}
	return doc
}
