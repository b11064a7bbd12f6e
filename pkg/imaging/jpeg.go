// Package imaging shrinks and encodes profile pictures before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ErrNilImage is returned when there is nothing to encode.
var ErrNilImage = errors.New("image is nil")

// Processor resizes and encodes images.
type Processor interface {
	Resize(img image.Image, maxDimension int) image.Image
	Encode(img image.Image, quality int) ([]byte, error)
}

// JPEG is the default Processor.
type JPEG struct{}

// Resize scales img so its longer side is at most maxDimension, keeping the
// aspect ratio. Images already small enough are returned unchanged.
func (JPEG) Resize(img image.Image, maxDimension int) image.Image {
	if img == nil || maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDimension
		nh = max(1, h*maxDimension/w)
	} else {
		nh = maxDimension
		nw = max(1, w*maxDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Encode produces JPEG bytes at quality (1..100).
func (JPEG) Encode(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range", quality)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has empty bounds %v", b)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
