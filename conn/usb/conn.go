// Package usb registers the "usb" connection driver for Epson printers.
package usb

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/gousb"
	"github.com/ka2n/tmcgo/conn"
)

const epsonVendorID gousb.ID = 0x04b8

type USBSink struct {
	mu     sync.Mutex
	output *gousb.OutEndpoint
	done   func()
}

func init() {
	conn.Register("usb", conn.DriverFunc(OpenUSB))
}

// OpenUSB open usb connection to device. if address is empty string, it will use the first Epson printer-class device.
// address should formatted like "0x0e2b" or empty string.
func OpenUSB(address string) (conn.Sink, error) {
	var err error
	var ctx *gousb.Context
	var done func()
	var dev *gousb.Device
	var usbif *gousb.Interface
	var output *gousb.OutEndpoint
	var devs []*gousb.Device

	ctx = gousb.NewContext()

	if address != "" {
		if !strings.HasPrefix(address, "0x") {
			err = fmt.Errorf("invalid device address. address should \"0x0000\" form")
			goto handleError
		}

		var productID []byte
		productID, err = hex.DecodeString(address[2:])
		if err != nil {
			goto handleError
		}
		if len(productID) != 2 {
			err = fmt.Errorf("invalid product id %q", address)
			goto handleError
		}
		dev, err = ctx.OpenDeviceWithVIDPID(epsonVendorID, gousb.ID(binary.BigEndian.Uint16(productID)))
		if err != nil {
			goto handleError
		}
	} else {
		devs, err = ctx.OpenDevices(isEpsonPrinter)
		for i, d := range devs {
			if i == 0 {
				dev = d
				continue
			}
			d.Close()
		}
		if dev != nil {
			err = nil
		}
		if err != nil {
			goto handleError
		}
	}

	if dev == nil {
		err = fmt.Errorf("USB device not found")
		goto handleError
	}

	err = dev.SetAutoDetach(true)
	if err != nil {
		err = fmt.Errorf("set auto detach kernel driver: %w", err)
		goto handleError
	}

	usbif, done, err = dev.DefaultInterface()
	if err != nil {
		err = fmt.Errorf("get default interface: %w", err)
		goto handleError
	}

	output, err = bulkOut(usbif)
	if err != nil {
		err = fmt.Errorf("open OutEndpoint: %w", err)
		goto handleError
	}

	return &USBSink{
		output: output,
		done: func() {
			done()
			dev.Close()
			ctx.Close()
		},
	}, nil

handleError:
	if done != nil {
		done()
	}
	if dev != nil {
		dev.Close()
	}
	if ctx != nil {
		ctx.Close()
	}
	return nil, err
}

func isEpsonPrinter(desc *gousb.DeviceDesc) bool {
	if desc.Vendor != epsonVendorID {
		return false
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func bulkOut(usbif *gousb.Interface) (*gousb.OutEndpoint, error) {
	for _, ep := range usbif.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			return usbif.OutEndpoint(ep.Number)
		}
	}
	return nil, fmt.Errorf("no bulk OUT endpoint on %s", usbif)
}

func (s *USBSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return nil
	}
	done := s.done
	s.done = nil
	s.output = nil
	done()
	return nil
}

func (s *USBSink) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == nil {
		return 0, fmt.Errorf("usb: write on closed device")
	}
	return s.output.Write(b)
}
