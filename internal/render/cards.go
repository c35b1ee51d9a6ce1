package render

import (
	"image"
	"image/color"
	"io"
	"strings"
)

var (
	slideBackground = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	slideHeading    = color.RGBA{R: 255, G: 215, A: 255}
	white           = color.RGBA{R: 255, G: 255, B: 255, A: 255}

	thumbTop    = color.RGBA{R: 18, G: 32, B: 92, A: 255}
	thumbBottom = color.RGBA{R: 96, G: 24, B: 120, A: 255}
	thumbAccent = color.RGBA{R: 255, G: 196, B: 0, A: 255}
)

// Slide draws a section card: the heading in capitals above the wrapped body.
func Slide(w io.Writer, width, height int, heading, body string) error {
	canvas, err := NewCanvas(width, height, slideBackground, slideBackground)
	if err != nil {
		return err
	}
	margin := width / 13
	inner := image.Rect(margin, margin, width-margin, height-margin)
	headingBox := image.Rect(inner.Min.X, inner.Min.Y, inner.Max.X, inner.Min.Y+inner.Dy()/4)
	used := canvas.DrawBlock(Block{
		Text:     strings.ToUpper(heading),
		Color:    slideHeading,
		Box:      headingBox,
		MaxScale: max(height/144, 1),
	})
	bodyTop := max(used.Max.Y, inner.Min.Y) + height/24
	canvas.DrawBlock(Block{
		Text:     body,
		Color:    white,
		Box:      image.Rect(inner.Min.X, bodyTop, inner.Max.X, inner.Max.Y),
		MaxScale: max(height/240, 1),
	})
	return canvas.EncodePNG(w)
}

// Thumbnail draws a title card with an accent bar and an optional tagline.
func Thumbnail(w io.Writer, width, height int, title, tagline string) error {
	canvas, err := NewCanvas(width, height, thumbTop, thumbBottom)
	if err != nil {
		return err
	}
	margin := width / 16
	bar := max(height/60, 2)
	canvas.FillRect(image.Rect(margin, margin, margin+width/6, margin+bar), thumbAccent)

	titleBox := image.Rect(margin, margin+bar*3, width-margin, height-margin-height/8)
	canvas.DrawBlock(Block{
		Text:     title,
		Color:    white,
		Box:      titleBox,
		MaxScale: max(height/90, 1),
	})
	if tagline = strings.TrimSpace(tagline); tagline != "" {
		canvas.DrawBlock(Block{
			Text:     strings.ToUpper(tagline),
			Color:    thumbAccent,
			Box:      image.Rect(margin, height-margin-height/10, width-margin, height-margin),
			MaxScale: max(height/240, 1),
		})
	}
	return canvas.EncodePNG(w)
}
