// Package conn opens the byte channel print data is written to.
package conn

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

func init() {
	Register("file", DriverFunc(openFile))
	Register("serial", DriverFunc(openSerial))
	Register("tcp", DriverFunc(openTCP))
}

// Driver is interface for connection backend
type Driver interface {
	Open(address string) (Sink, error)
}

// Sink is a write-only printer channel.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
}

// Register new driver backend
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("conn: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("conn: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Drivers returns the registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connection with specific driver backend and address
func Open(name, address string) (Sink, error) {
	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("conn: unknown driver %q", name)
	}
	s, err := driver.Open(address)
	if err != nil {
		return nil, errors.Wrapf(err, "conn: open %s:%s", name, address)
	}
	return s, nil
}

// OpenURI opens a "driver:address" string. An empty string or "-"
// selects standard output.
func OpenURI(uri string) (Sink, error) {
	if uri == "" || uri == "-" {
		return Open("file", "-")
	}
	name, address, ok := strings.Cut(uri, ":")
	if !ok {
		return nil, errors.Errorf("conn: %q is not driver:address", uri)
	}
	return Open(name, address)
}

// DriverFunc convert function into Driver like http.HandlerFunc
type DriverFunc func(address string) (Sink, error)

// Open call itsself as function
func (f DriverFunc) Open(address string) (Sink, error) {
	return f(address)
}

type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdout) Close() error                { return nil }
