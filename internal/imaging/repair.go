// Package imaging handles the page images the device hands back:
// repairing feeder JPEGs whose frame header lies about the height, and
// producing preview thumbnails.
package imaging

import (
	"errors"
	"fmt"
	"os"
)

// JPEG markers the segment walker cares about.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerDNL  = 0xDC
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// ErrNotJPEG is returned for files without a JPEG signature.
var ErrNotJPEG = errors.New("not a JPEG file")

// RepairHeight fixes a feeder JPEG whose SOF frame header declares zero
// lines. Feeder scans of unknown length are emitted with height 0 in the
// frame header and the real line count in a trailing DNL segment; most
// decoders ignore the DNL and see an empty image. RepairHeight patches the
// frame header in place from the DNL and reports the corrected height.
//
// It returns the declared height and repaired=false when the header
// already carries a non-zero height or no DNL segment exists.
func RepairHeight(path string) (height int, repaired bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("reading image: %w", err)
	}

	height, sofAt, dnlLines, err := walkSegments(data)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", path, err)
	}

	if height != 0 || sofAt < 0 || dnlLines <= 0 {
		return height, false, nil
	}

	data[sofAt] = byte(dnlLines >> 8)
	data[sofAt+1] = byte(dnlLines)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, false, fmt.Errorf("rewriting image: %w", err)
	}
	return dnlLines, true, nil
}

// walkSegments scans the JPEG segment stream and returns the declared SOF
// height, the byte offset of the SOF height field, and the line count from
// a DNL segment if one exists (0 otherwise).
func walkSegments(data []byte) (height, sofAt, dnlLines int, err error) {
	sofAt = -1
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return 0, -1, 0, ErrNotJPEG
	}

	i := 2
	for i+3 < len(data) {
		if data[i] != 0xFF {
			return 0, -1, 0, fmt.Errorf("corrupt segment stream at offset %d", i)
		}
		marker := data[i+1]

		switch {
		case marker == 0xFF: // fill byte
			i++
			continue
		case marker == markerEOI:
			return height, sofAt, dnlLines, nil
		case marker == markerTEM, marker >= markerRST0 && marker <= markerRST7:
			i += 2
			continue
		}

		segLen := int(data[i+2])<<8 | int(data[i+3])
		if segLen < 2 || i+2+segLen > len(data) {
			return 0, -1, 0, fmt.Errorf("truncated segment 0x%02X at offset %d", marker, i)
		}

		switch {
		case isSOF(marker):
			if segLen < 7 {
				return 0, -1, 0, fmt.Errorf("short SOF segment at offset %d", i)
			}
			// Segment layout: length(2) precision(1) height(2) width(2).
			sofAt = i + 5
			height = int(data[sofAt])<<8 | int(data[sofAt+1])

		case marker == markerDNL:
			if segLen >= 4 {
				dnlLines = int(data[i+4])<<8 | int(data[i+5])
			}
			return height, sofAt, dnlLines, nil

		case marker == markerSOS:
			// Skip entropy-coded data to the next real marker.
			j := i + 2 + segLen
			for j+1 < len(data) {
				if data[j] == 0xFF && data[j+1] != 0x00 &&
					!(data[j+1] >= markerRST0 && data[j+1] <= markerRST7) {
					break
				}
				j++
			}
			i = j
			continue
		}

		i += 2 + segLen
	}
	return height, sofAt, dnlLines, nil
}

// isSOF reports whether marker starts a frame header. C4, C8 and CC fall
// in the SOF numbering range but are DHT, JPG and DAC segments.
func isSOF(marker byte) bool {
	if marker < 0xC0 || marker > 0xCF {
		return false
	}
	return marker != 0xC4 && marker != 0xC8 && marker != 0xCC
}
