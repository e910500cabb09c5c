package convert

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// ErrInvalidFontSize is returned by FromText for sizes that are not positive.
var ErrInvalidFontSize = errors.New("convert: invalid font size")

var (
	regularOnce sync.Once
	regular     *opentype.Font
	regularErr  error
)

func regularFont() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = opentype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// FromText renders text in Go Regular at size points onto a white w x h
// canvas and returns the packed frame. The first line's top-left corner is
// at the origin. Text is not wrapped and anything past the edges is clipped.
func FromText(text string, size float64, w, h int) ([]byte, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFontSize, size)
	}
	if err := checkDimensions(w, h); err != nil {
		return nil, err
	}

	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("convert: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("convert: font face: %w", err)
	}
	defer face.Close()

	return FromTextFace(text, face, w, h)
}

// FromTextFace is FromText with a caller supplied face.
func FromTextFace(text string, face font.Face, w, h int) ([]byte, error) {
	if err := checkDimensions(w, h); err != nil {
		return nil, err
	}

	img := image1bit.NewVerticalLSB(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.On}, image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.Off},
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	return Pack(img), nil
}
