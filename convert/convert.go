// Package convert turns images and text into packed 1bpp frames for the
// panels in package epd.
//
// A frame is W*H/8 bytes. Pixels are traversed row by row, left to right,
// and packed most significant bit first. A set bit is white (ink off), a
// clear bit is black.
package convert

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/MaxHalford/halfgone"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/AndreRenaud/waveshare_epd/epd"
)

var (
	// ErrInvalidDimensions is returned when the target geometry cannot hold a
	// packed frame.
	ErrInvalidDimensions = errors.New("convert: invalid dimensions")
	// ErrDecode wraps failures to open or decode a source image.
	ErrDecode = errors.New("convert: decode")
)

// CropMode selects how a source image is fitted to the panel.
type CropMode int

const (
	// Center scales the image to fit inside the panel and pads the rest with
	// white.
	Center CropMode = iota
	// CropToFit scales the image to cover the panel and crops the overflow
	// around the centre.
	CropToFit
)

var cropNames = map[CropMode]string{
	Center:    "center",
	CropToFit: "fit",
}

func (c CropMode) String() string {
	if s, ok := cropNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CropMode(%d)", int(c))
}

// ParseCropMode accepts "center" or "fit".
func ParseCropMode(s string) (CropMode, error) {
	for k, v := range cropNames {
		if strings.EqualFold(s, v) {
			return k, nil
		}
	}
	return Center, fmt.Errorf("convert: unknown crop mode %q (want center or fit)", s)
}

// RotationMode selects when the source is turned 90 degrees clockwise before
// fitting.
type RotationMode int

const (
	// Automatic rotates when the source and the panel disagree on being
	// landscape or portrait. Square images are never rotated.
	Automatic RotationMode = iota
	// ForceLandscape rotates portrait sources.
	ForceLandscape
	// ForcePortrait rotates landscape sources.
	ForcePortrait
)

var rotationNames = map[RotationMode]string{
	Automatic:      "auto",
	ForceLandscape: "landscape",
	ForcePortrait:  "portrait",
}

func (r RotationMode) String() string {
	if s, ok := rotationNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RotationMode(%d)", int(r))
}

// ParseRotationMode accepts "auto", "landscape" or "portrait".
func ParseRotationMode(s string) (RotationMode, error) {
	for k, v := range rotationNames {
		if strings.EqualFold(s, v) {
			return k, nil
		}
	}
	return Automatic, fmt.Errorf("convert: unknown rotation %q (want auto, landscape or portrait)", s)
}

// ColorMode names the panel's ink set.
type ColorMode int

const (
	BlackWhite ColorMode = iota
	// BlackWhiteRed is accepted for tri-colour panels but currently renders
	// exactly like BlackWhite.
	BlackWhiteRed
)

// Options controls FromImage and FromFile. The zero value centres the image
// with automatic rotation but has no geometry; use OptionsFor.
type Options struct {
	Crop     CropMode
	Rotation RotationMode
	Color    ColorMode
	Width    int
	Height   int
}

// OptionsFor returns default options sized for p.
func OptionsFor(p *epd.Profile) Options {
	return Options{Width: p.Width, Height: p.Height}
}

func (o Options) validate() error {
	return checkDimensions(o.Width, o.Height)
}

func checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, w, h)
	}
	if (w*h)%8 != 0 {
		return fmt.Errorf("%w: %dx%d is not a whole number of bytes", ErrInvalidDimensions, w, h)
	}
	return nil
}

// FromFile decodes the image at path, honouring EXIF orientation, and
// converts it with FromImage. PNG, JPEG, GIF, TIFF, BMP and WebP are
// supported.
func FromFile(path string, o Options) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return FromImage(img, o)
}

// FromImage rotates, fits and dithers img to o.Width x o.Height and returns
// the packed frame.
func FromImage(img image.Image, o Options) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidDimensions)
	}

	if o.needsRotation(img.Bounds()) {
		img = imaging.Rotate270(img)
	}

	var g *image.Gray
	switch o.Crop {
	case CropToFit:
		g = dither(imaging.Fill(img, o.Width, o.Height, imaging.Center, imaging.Lanczos))
	default:
		g = centerAndPad(img, o.Width, o.Height)
	}
	return Pack(g), nil
}

func (o Options) needsRotation(b image.Rectangle) bool {
	w, h := b.Dx(), b.Dy()
	switch o.Rotation {
	case ForceLandscape:
		return h > w
	case ForcePortrait:
		return w > h
	default:
		return (w > h && o.Width < o.Height) || (w < h && o.Width > o.Height)
	}
}

// centerAndPad scales img to fit inside w x h and pastes it onto a white
// canvas, centred vertically when it is shorter than the canvas and
// horizontally otherwise.
func centerAndPad(img image.Image, w, h int) *image.Gray {
	fw, fh := fitSize(img.Bounds().Dx(), img.Bounds().Dy(), w, h)
	g := dither(imaging.Resize(img, fw, fh, imaging.Lanczos))

	canvas := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	var off image.Point
	if fh < h {
		off.Y = (h - fh) / 2
	} else {
		off.X = (w - fw) / 2
	}
	draw.Draw(canvas, g.Bounds().Add(off), g, image.Point{}, draw.Src)
	return canvas
}

// fitSize returns the largest size with the aspect ratio of sw x sh that fits
// inside w x h. Unlike imaging.Fit it also scales up.
func fitSize(sw, sh, w, h int) (int, int) {
	if sw*h > sh*w {
		return w, clamp((sh*w+sw/2)/sw, 1, h)
	}
	return clamp((sw*h+sh/2)/sh, 1, w), h
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// dither flattens img onto white, converts it to grayscale and reduces it to
// pure black and white.
func dither(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Over)
	return halfgone.FloydSteinbergDitherer{}.Apply(gray)
}
