package convert

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestPackBitOrder(t *testing.T) {
	tests := []struct {
		name  string
		black []int
		want  []byte
	}{
		{"all white", nil, []byte{0xFF, 0xFF}},
		{"first pixel", []int{0}, []byte{0x7F, 0xFF}},
		{"eighth pixel", []int{7}, []byte{0xFE, 0xFF}},
		{"ninth pixel", []int{8}, []byte{0xFF, 0x7F}},
		{"second row", []int{12}, []byte{0xFF, 0xF7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 4x4 so the second byte straddles two rows.
			img := image.NewGray(image.Rect(0, 0, 4, 4))
			for i := range img.Pix {
				img.Pix[i] = 0xFF
			}
			for _, i := range tt.black {
				img.Pix[i] = 0
			}
			if got := Pack(img); !bytes.Equal(got, tt.want) {
				t.Errorf("Pack() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestPackThreshold(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 1))
	for x, y := range []uint8{0, 64, 127, 128, 129, 200, 255, 0} {
		img.Set(x, 0, color.Gray{Y: y})
	}
	if got, want := Pack(img), []byte{0x1E}; !bytes.Equal(got, want) {
		t.Errorf("Pack() = %x, want %x", got, want)
	}
}

func TestPackOffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(5, 5, 13, 6))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(5, 5, color.Gray{})
	if got := Pack(img); !bytes.Equal(got, []byte{0x7F}) {
		t.Errorf("Pack() = %x, want 7f", got)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	frame := make([]byte, 16*4/8)
	for i := range frame {
		frame[i] = byte(i*37 + 11)
	}
	img, err := Unpack(frame, 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := Pack(img); !bytes.Equal(got, frame) {
		t.Errorf("Pack(Unpack()) = %x, want %x", got, frame)
	}
}

func TestUnpackSizeMismatch(t *testing.T) {
	if _, err := Unpack(make([]byte, 7), 8, 8); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Unpack() = %v, want ErrInvalidDimensions", err)
	}
	if _, err := Unpack(nil, 0, 8); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Unpack() = %v, want ErrInvalidDimensions", err)
	}
}

func countBlack(frame []byte) int {
	n := 0
	for _, b := range frame {
		for i := 0; i < 8; i++ {
			if b&(0x80>>i) == 0 {
				n++
			}
		}
	}
	return n
}

func TestFromText(t *testing.T) {
	frame, err := FromText("Hello", 24, 128, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != 128*64/8 {
		t.Fatalf("frame is %d bytes, want %d", len(frame), 128*64/8)
	}
	if countBlack(frame) == 0 {
		t.Fatal("no glyph pixels were drawn")
	}

	img, err := Unpack(frame, 128, 64)
	if err != nil {
		t.Fatal(err)
	}
	// One 24pt line starting at the origin stays in the top half.
	for y := 32; y < 64; y++ {
		if !rowIsWhite(img, y) {
			t.Fatalf("row %d has ink, text should start at the top", y)
		}
	}
	inked := false
	for x := 0; x < 8; x++ {
		inked = inked || !columnIsWhite(img, x)
	}
	if !inked {
		t.Error("no ink near the left edge, text should start at x=0")
	}
}

func TestFromTextBlank(t *testing.T) {
	for _, s := range []string{"", " ", "   "} {
		frame, err := FromText(s, 16, 16, 16)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(frame, bytes.Repeat([]byte{0xFF}, 32)) {
			t.Errorf("FromText(%q) = %x, want all white", s, frame)
		}
	}
}

func TestFromTextClips(t *testing.T) {
	frame, err := FromText("a line far too long for a tiny panel", 40, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != 16 {
		t.Errorf("frame is %d bytes, want 16", len(frame))
	}
}

func TestFromTextInvalid(t *testing.T) {
	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := FromText("x", size, 16, 16); !errors.Is(err, ErrInvalidFontSize) {
			t.Errorf("FromText(size %v) = %v, want ErrInvalidFontSize", size, err)
		}
	}
	if _, err := FromText("x", 12, 3, 3); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("FromText(3x3) = %v, want ErrInvalidDimensions", err)
	}
}

func TestFromTextFace(t *testing.T) {
	frame, err := FromTextFace("EPD", basicfont.Face7x13, 64, 16)
	if err != nil {
		t.Fatal(err)
	}
	if countBlack(frame) == 0 {
		t.Error("no glyph pixels were drawn")
	}
}
