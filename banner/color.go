package banner

import (
	"image/color"
	"strconv"
	"strings"
)

// DefaultBackground is dodger blue, used whenever a colour cannot be parsed.
var DefaultBackground = color.NRGBA{R: 30, G: 144, B: 255, A: 255}

// ParseHexColor decodes "#RRGGBB" (the leading '#' is optional).
func ParseHexColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, false
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}

	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, true
}

// ColorOrDefault is ParseHexColor with the DefaultBackground fallback.
func ColorOrDefault(s string) color.NRGBA {
	if c, ok := ParseHexColor(s); ok {
		return c
	}
	return DefaultBackground
}
