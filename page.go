package tmcgo

import "math"

// Page is the geometry of one page, fixed while it prints.
type Page struct {
	// Width in dots and Height in scanlines of the printable image.
	Width, Height int

	HDPI, VDPI int

	// Length is the physical page length and TopMargin the unprintable
	// top area, both in points (1/72 inch).
	Length    int
	TopMargin int

	// LeftMargin is the horizontal head position of each pass, in dots.
	LeftMargin int

	Cut      bool
	Compress bool
}

type pageGeometry struct {
	unit       int
	page       int
	vertical   int
	horizontal int
	length     uint32
	top        uint32
	left       uint32
	stride     int
}

func (p Page) geometry(dev Device) (pageGeometry, error) {
	var g pageGeometry
	if p.Width <= 0 || p.Height < 0 {
		return g, configErrorf("page size %dx%d", p.Width, p.Height)
	}
	if p.HDPI <= 0 || p.VDPI <= 0 {
		return g, configErrorf("resolution %dx%d", p.HDPI, p.VDPI)
	}

	for g.unit = 1440; g.unit < p.HDPI; g.unit *= 2 {
	}
	if g.unit > math.MaxUint16 {
		return g, configErrorf("unit %d exceeds 16 bits", g.unit)
	}
	g.page = g.unit / p.VDPI
	g.vertical = g.unit / p.VDPI
	g.horizontal = g.unit / p.HDPI
	for _, v := range []int{g.page, g.vertical, g.horizontal} {
		if v < 1 || v > math.MaxUint8 {
			return g, configErrorf("resolution %dx%d cannot be expressed in units of 1/%d", p.HDPI, p.VDPI, g.unit)
		}
	}

	length := int64(p.Length) * int64(p.VDPI) / 72
	top := int64(p.TopMargin) * int64(p.VDPI) / 72
	if p.Length < 0 || length > math.MaxUint32 {
		return g, configErrorf("page length %d points", p.Length)
	}
	if p.TopMargin < 0 || top > length {
		return g, configErrorf("top margin %d points on a %d point page", p.TopMargin, p.Length)
	}
	if p.LeftMargin < 0 || int64(p.LeftMargin) > math.MaxUint32 {
		return g, configErrorf("left margin %d dots", p.LeftMargin)
	}
	g.length = uint32(length)
	g.top = uint32(top)
	g.left = uint32(p.LeftMargin)

	g.stride = dev.RowStride(p.Width)
	if g.stride > math.MaxUint16 {
		return g, configErrorf("row of %d dots needs %d bytes, limit is %d", p.Width, g.stride, math.MaxUint16)
	}
	if dev.MaxRowsPerFlush/2 > math.MaxUint16 {
		return g, configErrorf("%d rows per pass exceeds 16 bits", dev.MaxRowsPerFlush/2)
	}
	return g, nil
}
