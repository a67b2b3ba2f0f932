package tui

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	// Register the decoders for the supported image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
)

// renderFile decodes the image at path and renders it to fit a width x
// height cell grid.
func renderFile(path string, width, height int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return renderImage(img, width, height), nil
}

// renderImage paints img onto a terminal cell grid using upper
// half-blocks, two image rows per cell, preserving aspect ratio. The
// result is centered within the requested area.
func renderImage(img image.Image, width, height int) string {
	if width < 1 || height < 1 {
		return ""
	}

	// One cell is roughly twice as tall as it is wide, so a cell grid of
	// width x height maps to a pixel grid of width x 2*height.
	fitted := imaging.Fit(img, width, height*2, imaging.Lanczos)
	bounds := fitted.Bounds()
	cols := bounds.Dx()
	rows := (bounds.Dy() + 1) / 2

	var b strings.Builder
	for row := 0; row < rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < cols; col++ {
			top := fitted.At(bounds.Min.X+col, bounds.Min.Y+row*2)
			style := lipgloss.NewStyle().Foreground(toColor(top))
			if row*2+1 < bounds.Dy() {
				style = style.Background(toColor(fitted.At(bounds.Min.X+col, bounds.Min.Y+row*2+1)))
			}
			b.WriteString(style.Render("▀"))
		}
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, b.String())
}

// toColor converts a color.Color to a lipgloss truecolor value.
func toColor(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8)))
}
