package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 22

// iconData is the template icon: a filled note head with a stem.
var iconData = renderIcon()

func renderIcon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	ink := color.NRGBA{A: 0xff}

	// Note head centred at (8, 16).
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := x-8, y-16
			if dx*dx+dy*dy*2 <= 18 {
				img.SetNRGBA(x, y, ink)
			}
		}
	}
	// Stem and flag.
	for y := 3; y <= 16; y++ {
		img.SetNRGBA(11, y, ink)
		img.SetNRGBA(12, y, ink)
	}
	for x := 12; x <= 17; x++ {
		img.SetNRGBA(x, 3+(x-12)/2, ink)
		img.SetNRGBA(x, 4+(x-12)/2, ink)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
