package hal

// color565 is one RGB565 pixel, stored little endian in framebuffers.
type color565 uint16

func pack565(r, g, b uint8) color565 {
	return color565(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// rgb expands p to 8 bits per channel.
func (p color565) rgb() (r, g, b uint8) {
	r = uint8(uint32(p>>11&0x1F) * 255 / 31)
	g = uint8(uint32(p>>5&0x3F) * 255 / 63)
	b = uint8(uint32(p&0x1F) * 255 / 31)
	return r, g, b
}

// fill565 sets every pixel of buf to p.
func fill565(buf []byte, p color565) {
	lo, hi := byte(p), byte(p>>8)
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = lo
		buf[i+1] = hi
	}
}

// expand565 converts RGB565 pixels in src to opaque RGBA in dst.
func expand565(dst, src []byte) {
	for i, j := 0, 0; i+1 < len(src) && j+3 < len(dst); i, j = i+2, j+4 {
		dst[j], dst[j+1], dst[j+2] = color565(uint16(src[i]) | uint16(src[i+1])<<8).rgb()
		dst[j+3] = 0xFF
	}
}
