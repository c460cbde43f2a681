package conn

import (
	"net"
	"os"

	"github.com/goburrow/serial"
)

// openFile for device nodes like /dev/usb/lp0, or "-" for stdout
func openFile(address string) (Sink, error) {
	if address == "-" {
		return stdout{}, nil
	}
	f, err := os.OpenFile(address, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// openSerial for generic serial connection
func openSerial(address string) (Sink, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// openTCP for raw socket printing, usually port 9100
func openTCP(address string) (Sink, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "9100")
	}
	c, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return c, nil
}
