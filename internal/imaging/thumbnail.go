package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"os"

	"golang.org/x/image/draw"
)

// Dimensions decodes the pixel dimensions of an image file without
// decoding the full image.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close() //nolint:errcheck

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail writes a JPEG preview of src to dst, scaled so its longest
// edge is maxEdge pixels. Images already within bounds are copied through
// the encoder unscaled.
func Thumbnail(src, dst string, maxEdge int) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer f.Close() //nolint:errcheck

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding source: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxEdge || h > maxEdge {
		scale := float64(maxEdge) / float64(max(w, h))
		sw := max(1, int(float64(w)*scale))
		sh := max(1, int(float64(h)*scale))
		scaled := image.NewRGBA(image.Rect(0, 0, sw, sh))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)
		img = scaled
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating thumbnail: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 80}); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("encoding thumbnail: %w", err)
	}
	return out.Close()
}
