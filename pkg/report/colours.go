package report

import (
	"fmt"
	"strconv"
)

func validHex(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	_, err := strconv.ParseUint(c[1:], 16, 32)
	return err == nil
}

func rgb(c string) (r, g, b int) {
	v, err := strconv.ParseUint(c[1:], 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

// Luminance is the perceived brightness of a hex colour, 0-255
func Luminance(c string) float64 {
	if !validHex(c) {
		return 0
	}
	r, g, b := rgb(c)
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// ContrastingText picks black or white text for a background
func ContrastingText(background string) string {
	if Luminance(background) > 128 {
		return "#000000"
	}
	return "#ffffff"
}

// TeamColour derives a stable colour from a team name for teams without kit colours.
// At least one channel is kept above 100 so the colour is never near black.
func TeamColour(team string) string {
	hash, i := 0, 0
	for _, c := range team {
		i++
		hash += int(c) * i
	}
	r, g, b := hash*123%256, hash*457%256, hash*789%256
	if brightest := max(r, g, b); brightest < 100 {
		if brightest == 0 {
			r, g, b = 120, 120, 120
		} else {
			f := 100 / float64(brightest)
			r = min(255, int(float64(r)*f))
			g = min(255, int(float64(g)*f))
			b = min(255, int(float64(b)*f))
		}
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
