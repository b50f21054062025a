// Package colorhash maps arbitrary strings to stable display colors.
//
// The hash is BKDR over the UTF-16 code units of the input, the color is
// picked in HSL space with three saturation and three lightness steps, so
// the same input always yields the same "#rrggbb" string.
package colorhash

import (
	"fmt"
	"math"
	"unicode/utf16"
)

const (
	seed  = 131
	seed2 = 137
)

// maxSafe keeps the running hash below 2^53 so it matches float-based hashers.
const maxSafe = uint64(9007199254740991) / seed2

var levels = [3]float64{0.35, 0.5, 0.65}

// Hash returns the BKDR hash of s.
func Hash(s string) uint64 {
	var h uint64
	// Padding with 'x' keeps short inputs well spread.
	for _, c := range utf16.Encode([]rune(s + "x")) {
		if h > maxSafe {
			h /= seed2
		}
		h = h*seed + uint64(c)
	}
	return h
}

// HSL returns hue in [0,359), saturation and lightness in [0,1].
func HSL(s string) (h, sat, light float64) {
	v := Hash(s)
	h = float64(v % 359)
	v /= 360
	sat = levels[v%uint64(len(levels))]
	v /= uint64(len(levels))
	light = levels[v%uint64(len(levels))]
	return h, sat, light
}

// RGB returns the 8-bit channels for s.
func RGB(s string) (r, g, b uint8) {
	h, sat, light := HSL(s)
	return hslToRGB(h/360, sat, light)
}

// Hex returns the "#rrggbb" color for s.
func Hex(s string) string {
	r, g, b := RGB(s)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	channel := func(t float64) uint8 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var c float64
		switch {
		case t < 1.0/6:
			c = p + (q-p)*6*t
		case t < 0.5:
			c = q
		case t < 2.0/3:
			c = p + (q-p)*6*(2.0/3-t)
		default:
			c = p
		}
		return uint8(math.Round(c * 255))
	}

	return channel(h + 1.0/3), channel(h), channel(h - 1.0/3)
}
