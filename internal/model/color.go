package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownColor is returned for color names or ids outside the palette.
var ErrUnknownColor = errors.New("unknown event color")

// Color is one of the 11 event colors of the destination calendar.
// The zero value means "no color set".
type Color int

const (
	ColorNone Color = iota
	Lavender
	Sage
	Grape
	Tangerine
	Banana
	Flamingo
	Peacock
	Graphite
	Blueberry
	Basil
	Tomato
)

var colorNames = [...]string{
	Lavender:  "lavender",
	Sage:      "sage",
	Grape:     "grape",
	Tangerine: "tangerine",
	Banana:    "banana",
	Flamingo:  "flamingo",
	Peacock:   "peacock",
	Graphite:  "graphite",
	Blueberry: "blueberry",
	Basil:     "basil",
	Tomato:    "tomato",
}

var colorHex = [...]string{
	Lavender:  "a4bdfc",
	Sage:      "7ae7bf",
	Grape:     "dbadff",
	Tangerine: "ff887c",
	Banana:    "fbd75b",
	Flamingo:  "ffb878",
	Peacock:   "46d6db",
	Graphite:  "e1e1e1",
	Blueberry: "5484ed",
	Basil:     "51b749",
	Tomato:    "dc2127",
}

// Colors returns every defined color, ordered by provider id.
func Colors() []Color {
	out := make([]Color, 0, len(colorNames)-1)
	for c := Lavender; c <= Tomato; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is a palette color (ColorNone is not).
func (c Color) Valid() bool {
	return c >= Lavender && c <= Tomato
}

// ID returns the provider numeric color id ("1".."11"), or "" for ColorNone.
func (c Color) ID() string {
	if !c.Valid() {
		return ""
	}
	return strconv.Itoa(int(c))
}

// Hex returns the color's hex code without the leading '#'.
func (c Color) Hex() string {
	if !c.Valid() {
		return ""
	}
	return colorHex[c]
}

func (c Color) String() string {
	if !c.Valid() {
		return "none"
	}
	return colorNames[c]
}

// ColorFromID maps a provider color id back to its Color.
func ColorFromID(id string) (Color, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || !Color(n).Valid() {
		return ColorNone, fmt.Errorf("%w: id %q", ErrUnknownColor, id)
	}
	return Color(n), nil
}

// ParseColor resolves a color name case-insensitively.
func ParseColor(name string) (Color, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, c := range Colors() {
		if colorNames[c] == key {
			return c, nil
		}
	}
	return ColorNone, fmt.Errorf("%w: %q", ErrUnknownColor, name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "none" and "" decode to ColorNone.
func (c *Color) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || strings.EqualFold(s, "none") {
		*c = ColorNone
		return nil
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
