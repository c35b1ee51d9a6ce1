// Package render draws the still images the pipeline needs without external
// tools: fallback slides for sections without stock footage, and thumbnails.
//
// Text uses the fixed 7x13 bitmap face scaled by whole multiples, which keeps
// output deterministic across hosts with different font installations.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mediafactory/internal/textutil"
)

var face = basicfont.Face7x13

const (
	glyphWidth  = 7
	glyphHeight = 13
)

// Block is a run of text placed inside a box of the canvas.
type Block struct {
	Text     string
	Color    color.RGBA
	Box      image.Rectangle
	MaxScale int
}

// Canvas is an RGBA image being composed.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas fills a width x height canvas with a vertical gradient from top to bottom.
func NewCanvas(width, height int, top, bottom color.RGBA) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: invalid size %dx%d", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		c := blend(top, bottom, float64(y)/float64(max(height-1, 1)))
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return &Canvas{img: img}, nil
}

// Image exposes the composed image.
func (c *Canvas) Image() *image.RGBA { return c.img }

// FillRect paints a solid rectangle.
func (c *Canvas) FillRect(r image.Rectangle, col color.RGBA) {
	xdraw.Draw(c.img, r, image.NewUniform(col), image.Point{}, xdraw.Src)
}

// DrawBlock wraps and scales text to fit its box and returns the rectangle
// actually used. Text that cannot fit even at scale 1 is truncated by lines.
func (c *Canvas) DrawBlock(b Block) image.Rectangle {
	lines, scale := fit(b.Text, b.Box.Dx(), b.Box.Dy(), b.MaxScale)
	lineHeight := glyphHeight*scale + glyphHeight*scale/4
	y := b.Box.Min.Y
	used := image.Rectangle{Min: b.Box.Min, Max: b.Box.Min}
	for _, line := range lines {
		if y+glyphHeight*scale > b.Box.Max.Y {
			break
		}
		r := c.drawLine(line, b.Box.Min.X, y, scale, b.Color)
		used = used.Union(r)
		y += lineHeight
	}
	return used
}

// EncodePNG writes the canvas as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}

func (c *Canvas) drawLine(text string, x, y, scale int, col color.RGBA) image.Rectangle {
	width := font.MeasureString(face, text).Ceil()
	if width <= 0 {
		return image.Rectangle{}
	}
	small := image.NewRGBA(image.Rect(0, 0, width, glyphHeight))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)
	dst := image.Rect(x, y, x+width*scale, y+glyphHeight*scale)
	xdraw.NearestNeighbor.Scale(c.img, dst, small, small.Bounds(), xdraw.Over, nil)
	return dst
}

// fit picks the largest scale (up to maxScale) at which the wrapped text fits
// the box, falling back to scale 1.
func fit(text string, boxW, boxH, maxScale int) ([]string, int) {
	text = strings.TrimSpace(text)
	if maxScale < 1 {
		maxScale = 1
	}
	for scale := maxScale; scale >= 1; scale-- {
		perLine := boxW / (glyphWidth * scale)
		if perLine < 1 {
			continue
		}
		lines := textutil.Wrap(text, perLine)
		lineHeight := glyphHeight*scale + glyphHeight*scale/4
		if len(lines)*lineHeight-glyphHeight*scale/4 <= boxH && longest(lines) <= perLine {
			return lines, scale
		}
	}
	return textutil.Wrap(text, max(boxW/glyphWidth, 1)), 1
}

func longest(lines []string) int {
	n := 0
	for _, line := range lines {
		n = max(n, len([]rune(line)))
	}
	return n
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
