package banner

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/pure-golang/bannermail/logger"
)

func init() {
	logger.InitDefault(logger.Config{
		Provider: logger.ProviderNoop,
		Level:    logger.INFO,
	})
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func sameRGB(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar == br && ag == bg && ab == bb
}

func countColor(img image.Image, c color.Color) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if sameRGB(img.At(x, y), c) {
				n++
			}
		}
	}
	return n
}

func TestGenerate_FallbackFont(t *testing.T) {
	g := NewGenerator(Config{FontPath: filepath.Join(t.TempDir(), "missing.ttf")}, nil)

	data, err := g.Generate(Options{Text: "Latest News"})

	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())
	assert.True(t, sameRGB(img.At(0, 0), DefaultBackground))
	assert.Positive(t, countColor(img, color.White), "text should be drawn")
}

func TestGenerate_GarbageFontFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.ttf")
	require.NoError(t, os.WriteFile(path, []byte("not a font"), 0o600))
	g := NewGenerator(Config{FontPath: path}, nil)

	data, err := g.Generate(Options{Text: "Hello"})

	require.NoError(t, err)
	decode(t, data)
}

func TestGenerate_ScalableFont(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o600))
	g := NewGenerator(Config{FontPath: path}, nil)

	data, err := g.Generate(Options{
		Text:       "Hello",
		Width:      400,
		Height:     120,
		Background: color.NRGBA{R: 0, G: 0, B: 0, A: 255},
		Foreground: color.NRGBA{R: 255, G: 0, B: 0, A: 255},
	})

	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, image.Rect(0, 0, 400, 120), img.Bounds())
	assert.True(t, sameRGB(img.At(0, 0), color.Black))
	assert.Positive(t, countColor(img, color.NRGBA{R: 255, A: 255}))
}

func TestGenerate_TextIsCentered(t *testing.T) {
	g := NewGenerator(Config{FontPath: ""}, nil)

	data, err := g.Generate(Options{Text: "XXXX", Width: 200, Height: 100})
	require.NoError(t, err)
	img := decode(t, data)

	minX, maxX, minY, maxY := 200, -1, 100, -1
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if sameRGB(img.At(x, y), color.White) {
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	}
	require.GreaterOrEqual(t, maxX, 0)

	assert.InDelta(t, 100, float64(minX+maxX+1)/2, 2)
	assert.InDelta(t, 50, float64(minY+maxY+1)/2, 2)
}

func TestGenerate_EmptyText(t *testing.T) {
	g := NewGenerator(Config{}, nil)

	data, err := g.Generate(Options{Width: 10, Height: 10})

	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, 100, countColor(img, DefaultBackground))
}

func TestParseHexColor(t *testing.T) {
	c, ok := ParseHexColor("#1E90FF")

	assert.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 30, G: 144, B: 255, A: 255}, c)

	c, ok = ParseHexColor("ff0000")
	assert.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, c)
}

func TestParseHexColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#", "#FFF", "#GGGGGG", "#1E90FF00", "+12345"} {
		_, ok := ParseHexColor(in)
		assert.False(t, ok, in)
		assert.Equal(t, DefaultBackground, ColorOrDefault(in), in)
	}
}
