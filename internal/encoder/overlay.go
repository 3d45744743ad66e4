package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotate stamps a status label into the top-left corner of a JPEG
// payload: decode, draw, re-encode at the encoder's quality. If decoding
// or re-encoding fails the original payload is returned so a bad cycle
// never loses the frame.
func (e *JPEG) Annotate(payload []byte, label string) []byte {
	if label == "" {
		return payload
	}
	img, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		return payload
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	drawLabel(rgba, 10, 20, label)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: e.quality}); err != nil {
		return payload
	}
	return buf.Bytes()
}

// drawLabel draws text over a dark backing box so the label stays
// readable on any frame content.
func drawLabel(img *image.RGBA, x, y int, label string) {
	if x < 0 {
		x = 0
	}
	if y < 10 {
		y = 10
	}

	bg := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= 0 && px < img.Bounds().Max.X && py >= 0 && py < img.Bounds().Max.Y {
				img.Set(px, py, bg)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{0, 255, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}
