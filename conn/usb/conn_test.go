package usb

import (
	"testing"

	"github.com/google/gousb"
)

func desc(vendor gousb.ID, class gousb.Class) *gousb.DeviceDesc {
	return &gousb.DeviceDesc{
		Vendor: vendor,
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Interfaces: []gousb.InterfaceDesc{{
					AltSettings: []gousb.InterfaceSetting{
						{Class: gousb.ClassVendorSpec},
						{Class: class},
					},
				}},
			},
		},
	}
}

func TestIsEpsonPrinter(t *testing.T) {
	tests := []struct {
		name string
		desc *gousb.DeviceDesc
		want bool
	}{
		{"epson printer", desc(epsonVendorID, gousb.ClassPrinter), true},
		{"epson scanner", desc(epsonVendorID, gousb.ClassVendorSpec), false},
		{"other printer", desc(0x04f9, gousb.ClassPrinter), false},
		{"no configs", &gousb.DeviceDesc{Vendor: epsonVendorID}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEpsonPrinter(tt.desc); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClosedSink(t *testing.T) {
	s := &USBSink{}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, err := s.Write([]byte{0x1b, '@'}); err == nil {
		t.Error("write on closed sink succeeded")
	}
}
