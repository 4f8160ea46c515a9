// Package screen draws what the VFD is showing, for debugging the rest of the program without the
// clock in front of you.
package screen

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"net/http"

	"github.com/jrockway/vfd-clock/control/display"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	digitWidth  = 60
	digitHeight = 100
	stroke      = 10 // Thickness of a segment.
	gap         = 20 // Space between digits, and around the edge.
	colonWidth  = 30 // Space for the separator between the hours and minutes.
	labelHeight = 20

	width  = 5*gap + 4*digitWidth + colonWidth
	height = 2*gap + digitHeight + labelHeight
)

var (
	background = color.NRGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff}
	unlit      = color.NRGBA{R: 0x28, G: 0x28, B: 0x28, A: 0xff}
	phosphor   = color.NRGBA{R: 0x40, G: 0xff, B: 0xd0, A: 0xff}
)

// segmentRects are the segments A through G of one digit, relative to the digit's top-left corner.
var segmentRects = [7]image.Rectangle{
	image.Rect(stroke, 0, digitWidth-stroke, stroke),                                      // A
	image.Rect(digitWidth-stroke, stroke, digitWidth, digitHeight/2),                      // B
	image.Rect(digitWidth-stroke, digitHeight/2, digitWidth, digitHeight-stroke),          // C
	image.Rect(stroke, digitHeight-stroke, digitWidth-stroke, digitHeight),                // D
	image.Rect(0, digitHeight/2, stroke, digitHeight-stroke),                              // E
	image.Rect(0, stroke, stroke, digitHeight/2),                                          // F
	image.Rect(stroke, digitHeight/2-stroke/2, digitWidth-stroke, digitHeight/2+stroke/2), // G
}

// Source is where the preview gets the display state.  *clock.Clock satisfies it.
type Source interface {
	Digits() display.Digits
	Duty() uint8
}

// Screen renders a Source.
type Screen struct {
	Source Source
}

// New returns a Screen that shows src.
func New(src Source) *Screen {
	return &Screen{Source: src}
}

// origin returns the top-left corner of digit i.
func origin(i int) image.Point {
	x := gap + i*(digitWidth+gap)
	if i >= 2 {
		x += colonWidth
	}
	return image.Pt(x, gap)
}

// lit scales the phosphor color by the PWM duty.  A dark display looks like an unlit one.
func lit(duty uint8) color.Color {
	if duty == 0 {
		return unlit
	}
	s := func(c uint8) uint8 {
		v := int(unlit.R) + (int(c)-int(unlit.R))*int(duty)/255
		if v < 0 {
			v = 0
		}
		return uint8(v)
	}
	return color.NRGBA{R: s(phosphor.R), G: s(phosphor.G), B: s(phosphor.B), A: 0xff}
}

// Render draws the digits at the given brightness.
func Render(d display.Digits, duty uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	on := image.NewUniform(lit(duty))
	off := image.NewUniform(unlit)
	fill := func(r image.Rectangle, c image.Image) {
		draw.Draw(img, r, c, image.Point{}, draw.Src)
	}

	for i, v := range d.D {
		o := origin(i)
		segs := display.Segments(v)
		for s, r := range segmentRects {
			c := off
			if segs&(1<<s) != 0 {
				c = on
			}
			fill(r.Add(o), c)
		}
	}

	c := off
	if d.Separator {
		c = on
	}
	x := origin(1).X + digitWidth + gap/2 + colonWidth/2 - stroke/2
	fill(image.Rect(x, gap+digitHeight/3-stroke/2, x+stroke, gap+digitHeight/3+stroke/2), c)
	fill(image.Rect(x, gap+2*digitHeight/3-stroke/2, x+stroke, gap+2*digitHeight/3+stroke/2), c)

	label := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(gap, height-labelHeight/2),
	}
	label.DrawString(fmt.Sprintf("%02d:%02d duty %d/255", d.Hours(), d.Minutes(), duty))
	return img
}

// ServeHTTP serves the current display as a PNG.
func (s *Screen) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	img := Render(s.Source.Digits(), s.Source.Duty())
	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		log.Printf("encoding image: %v", err)
	}
}
