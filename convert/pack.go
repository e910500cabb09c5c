package convert

import (
	"fmt"
	"image"
	"image/color"
)

// Pack converts img to a 1bpp frame. Pixels with a luma of 128 or more are
// white (bit set), everything else is black. If the pixel count is not a
// multiple of 8 the trailing bits of the last byte are white.
func Pack(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	frame := make([]byte, (w*h+7)/8)
	for i := range frame {
		frame[i] = 0xFF
	}

	gray, _ := img.(*image.Gray)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var l uint8
			if gray != nil {
				l = gray.Pix[gray.PixOffset(x, y)]
			} else {
				l = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			}
			if l < 0x80 {
				frame[i>>3] &^= 0x80 >> (i & 7)
			}
			i++
		}
	}
	return frame
}

// Unpack expands a packed frame back into a w x h grayscale image with
// white as 255 and black as 0.
func Unpack(frame []byte, w, h int) (*image.Gray, error) {
	if err := checkDimensions(w, h); err != nil {
		return nil, err
	}
	if len(frame) != w*h/8 {
		return nil, fmt.Errorf("%w: frame is %d bytes, %dx%d needs %d", ErrInvalidDimensions, len(frame), w, h, w*h/8)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if frame[i>>3]&(0x80>>(i&7)) != 0 {
			img.Pix[i] = 0xFF
		}
	}
	return img, nil
}
