// Package separate converts images into dithered per-ink rows.
//
// The color conversion is naive: inks are derived straight from RGB and
// light inks take the lower half of their dark ink's range.
package separate

import (
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/ka2n/tmcgo"
	"github.com/makeworld-the-better-one/dither/v2"
	"github.com/pkg/errors"

	// WebP input in addition to the formats imaging registers
	_ "golang.org/x/image/webp"
)

const (
	lumR, lumG, lumB = 55, 182, 18
)

// Decode reads an image, honoring EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	return img, nil
}

// Image holds the dithered planes of one page.
type Image struct {
	inks   []tmcgo.Ink
	bits   int
	width  int
	height int
	planes []*image.Paletted
}

// New scales img to width dots and dithers it for dev.
func New(img image.Image, dev tmcgo.Device, width int) (*Image, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 {
		return nil, errors.Errorf("separate: width %d", width)
	}

	b := img.Bounds()
	if b.Dx() != width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
		b = img.Bounds()
	}
	// Transparent areas print as paper
	paper := imaging.New(b.Dx(), b.Dy(), color.White)
	flat := imaging.Overlay(paper, img, image.Pt(0, 0), 1.0)

	inks := dev.Class.Inks()
	levels := 1 << dev.BitsPerDot
	coverage := inkCoverage(flat, inks)

	d := dither.NewDitherer(levelPalette(levels))
	if d == nil {
		return nil, errors.New("separate: invalid palette")
	}
	d.Matrix = dither.FloydSteinberg
	d.Serpentine = true

	s := &Image{
		inks:   inks,
		bits:   dev.BitsPerDot,
		width:  flat.Bounds().Dx(),
		height: flat.Bounds().Dy(),
		planes: make([]*image.Paletted, len(inks)),
	}
	for i, g := range coverage {
		s.planes[i] = d.DitherPaletted(g)
	}
	return s, nil
}

// Width returns the width in dots.
func (s *Image) Width() int { return s.width }

// Height returns the number of scanlines.
func (s *Image) Height() int { return s.height }

// Level returns the dithered ink level of plane at (x, y).
func (s *Image) Level(plane, x, y int) byte {
	p := s.planes[plane]
	return p.Pix[y*p.Stride+x]
}

// SeparateLine implements tmcgo.Separator.
func (s *Image) SeparateLine(y int, rows [][]byte) error {
	if len(rows) != len(s.planes) {
		return errors.Errorf("separate: %d rows for %d planes", len(rows), len(s.planes))
	}
	if y < 0 || y >= s.height {
		return nil
	}
	for i, p := range s.planes {
		start := y * p.Stride
		if err := Pack(rows[i], p.Pix[start:start+s.width], s.bits); err != nil {
			return err
		}
	}
	return nil
}

// Pack ORs one level per dot into dst, bits per dot, most significant first.
func Pack(dst, levels []byte, bits int) error {
	if bits != 1 && bits != 2 && bits != 4 && bits != 8 {
		return errors.Errorf("separate: cannot pack %d bits per dot", bits)
	}
	perByte := 8 / bits
	if need := (len(levels) + perByte - 1) / perByte; len(dst) < need {
		return errors.Errorf("separate: row needs %d bytes, have %d", need, len(dst))
	}
	mask := byte(1<<bits - 1)
	for x, v := range levels {
		shift := 8 - bits*(x%perByte+1)
		dst[x/perByte] |= (v & mask) << shift
	}
	return nil
}

// levelPalette maps palette index to ink level: index 0 is paper.
func levelPalette(levels int) []color.Color {
	p := make([]color.Color, levels)
	for i := range p {
		p[i] = color.Gray{Y: uint8(255 - i*255/(levels-1))}
	}
	return p
}

// inkCoverage returns one gray image per ink, where darker means more ink.
func inkCoverage(img *image.NRGBA, inks []tmcgo.Ink) []*image.Gray {
	b := img.Bounds()
	out := make([]*image.Gray, len(inks))
	for i := range out {
		out[i] = image.NewGray(b)
	}

	var v [7]uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			px := img.Pix[off : off+3 : off+3]
			amounts(&v, px[0], px[1], px[2], inks)
			for i, ink := range inks {
				out[i].Pix[out[i].PixOffset(x, y)] = 255 - v[ink]
			}
		}
	}
	return out
}

func amounts(v *[7]uint8, r, g, b uint8, inks []tmcgo.Ink) {
	*v = [7]uint8{}
	has := func(ink tmcgo.Ink) bool {
		for _, i := range inks {
			if i == ink {
				return true
			}
		}
		return false
	}

	if len(inks) <= 2 {
		lum := (lumR*int(r) + lumG*int(g) + lumB*int(b)) / (lumR + lumG + lumB)
		k := uint8(255 - lum)
		if has(tmcgo.InkLightBlack) {
			v[tmcgo.InkBlack], v[tmcgo.InkLightBlack] = split(k)
		} else {
			v[tmcgo.InkBlack] = k
		}
		return
	}

	c, m, y := 255-r, 255-g, 255-b
	if has(tmcgo.InkBlack) {
		k := min(c, m, y)
		c, m, y = c-k, m-k, y-k
		if has(tmcgo.InkLightBlack) {
			v[tmcgo.InkBlack], v[tmcgo.InkLightBlack] = split(k)
		} else {
			v[tmcgo.InkBlack] = k
		}
	}
	v[tmcgo.InkYellow] = y
	if has(tmcgo.InkLightCyan) {
		v[tmcgo.InkCyan], v[tmcgo.InkLightCyan] = split(c)
	} else {
		v[tmcgo.InkCyan] = c
	}
	if has(tmcgo.InkLightMagenta) {
		v[tmcgo.InkMagenta], v[tmcgo.InkLightMagenta] = split(m)
	} else {
		v[tmcgo.InkMagenta] = m
	}
}

// split shares an ink amount between the dark and light ink: the light
// ink peaks at mid coverage and hands over to the dark ink above it.
func split(v uint8) (dark, light uint8) {
	if v < 128 {
		return 0, v * 2
	}
	return (v - 128) * 2, (255 - v) * 2
}
