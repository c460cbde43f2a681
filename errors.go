package tmcgo

import "github.com/pkg/errors"

var (
	// ErrConfiguration reports page geometry the device or the wire format cannot express.
	ErrConfiguration = errors.New("configuration error")
	// ErrResource reports a page session that could not be allocated.
	ErrResource = errors.New("resource exhausted")
	// ErrSink reports a write the output channel rejected.
	ErrSink = errors.New("sink write failed")
	// ErrState reports an encoder call out of protocol order.
	ErrState = errors.New("invalid encoder state")
)

type sinkError struct {
	err error
}

func (e *sinkError) Error() string        { return "sink write failed: " + e.err.Error() }
func (e *sinkError) Unwrap() error        { return e.err }
func (e *sinkError) Is(target error) bool { return target == ErrSink }

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
