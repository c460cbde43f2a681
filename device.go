package tmcgo

import (
	"fmt"
	"sort"
)

// Ink is one physical nozzle group.
type Ink int

const (
	InkBlack Ink = iota
	InkCyan
	InkMagenta
	InkYellow
	InkLightBlack
	InkLightCyan
	InkLightMagenta
)

// Code returns the color selector used by the ESC i command.
func (i Ink) Code() byte {
	switch i {
	case InkBlack:
		return 0
	case InkMagenta:
		return 1
	case InkCyan:
		return 2
	case InkYellow:
		return 4
	case InkLightBlack:
		return 16
	case InkLightMagenta:
		return 17
	case InkLightCyan:
		return 18
	}
	panic(fmt.Sprintf("tmcgo: unknown ink %d", int(i)))
}

func (i Ink) String() string {
	switch i {
	case InkBlack:
		return "Black"
	case InkCyan:
		return "Cyan"
	case InkMagenta:
		return "Magenta"
	case InkYellow:
		return "Yellow"
	case InkLightBlack:
		return "LightBlack"
	case InkLightCyan:
		return "LightCyan"
	case InkLightMagenta:
		return "LightMagenta"
	}
	return fmt.Sprintf("Ink: %#x", int(i))
}

// DeviceClass selects the plane layout of a printer.
type DeviceClass int

const (
	ClassK DeviceClass = iota
	ClassKk
	ClassCMY
	ClassCMYK
	ClassCcMmYK
	ClassCcMmYKk
)

var classInks = map[DeviceClass][]Ink{
	ClassK:       {InkBlack},
	ClassKk:      {InkBlack, InkLightBlack},
	ClassCMY:     {InkCyan, InkMagenta, InkYellow},
	ClassCMYK:    {InkCyan, InkMagenta, InkYellow, InkBlack},
	ClassCcMmYK:  {InkCyan, InkLightCyan, InkMagenta, InkLightMagenta, InkYellow, InkBlack},
	ClassCcMmYKk: {InkCyan, InkLightCyan, InkMagenta, InkLightMagenta, InkYellow, InkBlack, InkLightBlack},
}

// Inks returns the ink of each plane, in plane order.
func (c DeviceClass) Inks() []Ink {
	return classInks[c]
}

// Planes returns the number of color planes.
func (c DeviceClass) Planes() int {
	return len(classInks[c])
}

func (c DeviceClass) String() string {
	switch c {
	case ClassK:
		return "K"
	case ClassKk:
		return "Kk"
	case ClassCMY:
		return "CMY"
	case ClassCMYK:
		return "CMYK"
	case ClassCcMmYK:
		return "CcMmYK"
	case ClassCcMmYKk:
		return "CcMmYKk"
	}
	return fmt.Sprintf("DeviceClass: %#x", int(c))
}

// Device describes the capabilities of a printer model.
type Device struct {
	Name  string
	Class DeviceClass

	// MaxRowsPerFlush is the number of scanlines buffered before a
	// head pass is sent. It must be even; each microweave pass gets half.
	MaxRowsPerFlush int

	// BitsPerDot is 1 for bilevel heads, 2 for variable dot size.
	BitsPerDot int

	// Cutter enables the remote mode AC command.
	Cutter bool

	// IdleBlocks is the number of ESC ( d padding blocks sent after
	// leaving remote mode.
	IdleBlocks int
}

// Validate checks the device is usable by the encoder.
func (d Device) Validate() error {
	if _, ok := classInks[d.Class]; !ok {
		return configErrorf("device %q: unknown class %v", d.Name, d.Class)
	}
	if d.MaxRowsPerFlush <= 0 || d.MaxRowsPerFlush%2 != 0 {
		return configErrorf("device %q: rows per flush must be positive and even, got %d", d.Name, d.MaxRowsPerFlush)
	}
	if d.BitsPerDot != 1 && d.BitsPerDot != 2 {
		return configErrorf("device %q: bits per dot must be 1 or 2, got %d", d.Name, d.BitsPerDot)
	}
	if d.IdleBlocks < 0 {
		return configErrorf("device %q: negative idle blocks", d.Name)
	}
	return nil
}

// RowStride returns the packed byte length of one dot row of width dots.
func (d Device) RowStride(width int) int {
	return (width*d.BitsPerDot + 7) / 8
}

var devices = map[string]Device{
	"tmc600": {
		Name:            "tmc600",
		Class:           ClassCMY,
		MaxRowsPerFlush: 180,
		BitsPerDot:      2,
		Cutter:          true,
		IdleBlocks:      2,
	},
	"escp2-k": {
		Name:            "escp2-k",
		Class:           ClassK,
		MaxRowsPerFlush: 180,
		BitsPerDot:      1,
	},
	"escp2-cmyk": {
		Name:            "escp2-cmyk",
		Class:           ClassCMYK,
		MaxRowsPerFlush: 180,
		BitsPerDot:      2,
	},
	"escp2-6color": {
		Name:            "escp2-6color",
		Class:           ClassCcMmYK,
		MaxRowsPerFlush: 180,
		BitsPerDot:      2,
	},
	"escp2-7color": {
		Name:            "escp2-7color",
		Class:           ClassCcMmYKk,
		MaxRowsPerFlush: 180,
		BitsPerDot:      2,
	},
}

// LookupDevice returns a built-in device by name.
func LookupDevice(name string) (Device, error) {
	d, ok := devices[name]
	if !ok {
		return Device{}, configErrorf("unknown device %q", name)
	}
	return d, nil
}

// Devices lists the built-in device names.
func Devices() []string {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
