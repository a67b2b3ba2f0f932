package tui

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	return img
}

func TestRenderImage_FillsRequestedArea(t *testing.T) {
	tests := []struct {
		name          string
		imgW, imgH    int
		width, height int
	}{
		{"square into wide area", 10, 10, 20, 5},
		{"wide into tall area", 40, 10, 10, 20},
		{"smaller than area", 4, 4, 30, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderImage(testImage(tt.imgW, tt.imgH), tt.width, tt.height)
			if got := lipgloss.Height(out); got != tt.height {
				t.Errorf("height = %d, want %d", got, tt.height)
			}
			if got := lipgloss.Width(out); got != tt.width {
				t.Errorf("width = %d, want %d", got, tt.width)
			}
			if !strings.Contains(out, "▀") {
				t.Error("expected half-block cells in output")
			}
		})
	}
}

func TestRenderImage_ZeroAreaIsEmpty(t *testing.T) {
	if out := renderImage(testImage(4, 4), 0, 10); out != "" {
		t.Errorf("expected empty output for zero width, got %q", out)
	}
	if out := renderImage(testImage(4, 4), 10, 0); out != "" {
		t.Errorf("expected empty output for zero height, got %q", out)
	}
}

func TestRenderFile_MissingFile(t *testing.T) {
	if _, err := renderFile("/nonexistent/image.png", 10, 10); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"holiday.jpg", 20, "holiday.jpg"},
		{"holiday.jpg", 7, "holiday"},
		{"holiday.jpg", 0, ""},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
