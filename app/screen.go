package app

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"ember/hal"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var _ drivers.Displayer = fbDisplay{}

// fbDisplay draws tinyfont glyphs straight into an RGB565 framebuffer.
type fbDisplay struct {
	fb hal.Framebuffer
}

func (d fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}

	w := d.fb.Width()
	h := d.fb.Height()
	ix := int(x)
	iy := int(y)
	if ix < 0 || ix >= w || iy < 0 || iy >= h {
		return
	}

	pixel := uint16((uint16(c.R>>3)&0x1F)<<11 | (uint16(c.G>>2)&0x3F)<<5 | (uint16(c.B>>3) & 0x1F))
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d fbDisplay) Display() error { return nil }

// textScreen lays out fixed pitch lines of text on a framebuffer.
type textScreen struct {
	d      fbDisplay
	font   tinyfont.Fonter
	width  int16
	height int16
	offset int16
}

func newTextScreen(fb hal.Framebuffer) *textScreen {
	if fb == nil {
		return nil
	}
	font := &proggy.TinySZ8pt7b
	_, w := tinyfont.LineWidth(font, "0")
	h := int16(font.YAdvance)
	if w == 0 || h == 0 {
		return nil
	}
	return &textScreen{
		d:      fbDisplay{fb: fb},
		font:   font,
		width:  int16(w),
		height: h,
		offset: h * 3 / 4,
	}
}

// draw clears the screen and writes lines, wrapping long ones. It reports
// false if the text did not fit.
func (s *textScreen) draw(bg, fg color.RGBA, lines []string) bool {
	fb := s.d.fb
	fb.ClearRGB(bg.R, bg.G, bg.B)

	maxH := int16(fb.Height())
	cols := int16(fb.Width()) / s.width
	if cols <= 0 {
		cols = 1
	}

	y := int16(0)
	for _, line := range lines {
		if line == "" {
			y += s.height
			continue
		}
		for len(line) > 0 {
			if y+s.height > maxH {
				_ = fb.Present()
				return false
			}
			chunk, rest := takeRunes(line, cols)
			s.drawLine(0, y, chunk, fg)
			y += s.height
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
	return true
}

func (s *textScreen) drawLine(x0, y0 int16, str string, fg color.RGBA) {
	x := x0
	for _, r := range str {
		tinyfont.DrawChar(s.d, s.font, x, y0+s.offset, r, fg)
		x += s.width
	}
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
