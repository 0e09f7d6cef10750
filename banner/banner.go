// Package banner renders a one-line text banner onto a solid background and
// encodes it as PNG.
package banner

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultWidth    = 800
	DefaultHeight   = 200
	DefaultFontSize = 40
	ContentType     = "image/png"
	Filename        = "banner.png"
)

// Config controls font resolution and default canvas size.
type Config struct {
	FontPath string  `envconfig:"BANNER_FONT_PATH" default:"arial.ttf"`
	FontSize float64 `envconfig:"BANNER_FONT_SIZE" default:"40"`
	Width    int     `envconfig:"BANNER_WIDTH" default:"800"`
	Height   int     `envconfig:"BANNER_HEIGHT" default:"200"`
}

// Options describes a single banner. Zero values take the generator defaults.
type Options struct {
	Text       string
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
}

// Generator renders banners.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// GeneratorOptions contains options for creating a Generator.
type GeneratorOptions struct {
	Logger *slog.Logger
}

// NewGenerator creates a Generator. Missing config values fall back to the
// package defaults.
func NewGenerator(cfg Config, options *GeneratorOptions) *Generator {
	if options == nil {
		options = &GeneratorOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = DefaultFontSize
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}

	return &Generator{
		cfg:    cfg,
		logger: options.Logger.WithGroup("banner"),
	}
}

// Generate draws opts.Text centred on the canvas and returns PNG bytes.
// Font problems never fail the call: the built-in bitmap face is used instead.
func (g *Generator) Generate(opts Options) ([]byte, error) {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = g.cfg.Width
	}
	if height <= 0 {
		height = g.cfg.Height
	}
	bg := opts.Background
	if bg == nil {
		bg = DefaultBackground
	}
	fg := opts.Foreground
	if fg == nil {
		fg = color.White
	}

	img := imaging.New(width, height, bg)

	face := g.face()
	defer face.Close()

	drawCentered(img, face, fg, opts.Text)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "failed to encode banner")
	}
	return buf.Bytes(), nil
}

// face loads the preferred scalable font, falling back to basicfont.
func (g *Generator) face() font.Face {
	face, err := loadFace(g.cfg.FontPath, g.cfg.FontSize)
	if err != nil {
		g.logger.Debug("using bitmap font fallback", "font_path", g.cfg.FontPath, "error", err.Error())
		return basicfont.Face7x13
	}
	return face
}

func loadFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return nil, errors.New("font path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read font %s", path)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse font %s", path)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create font face")
	}
	return face, nil
}

// drawCentered aligns the centre of the text bounding box with the centre of
// the canvas.
func drawCentered(dst *image.NRGBA, face font.Face, fg color.Color, text string) {
	if text == "" {
		return
	}

	bounds, _ := font.BoundString(face, text)
	size := dst.Bounds().Size()

	centerX := fixed.I(size.X) / 2
	centerY := fixed.I(size.Y) / 2

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot: fixed.Point26_6{
			X: centerX - (bounds.Min.X+bounds.Max.X)/2,
			Y: centerY - (bounds.Min.Y+bounds.Max.Y)/2,
		},
	}
	d.DrawString(text)
}
