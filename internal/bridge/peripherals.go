package bridge

import (
	"errors"

	"github.com/danmuck/edgelink/internal/netcall"
	"github.com/danmuck/edgelink/internal/radio"
)

// Peripherals are the devices the catalog drives. Either may be nil.
type Peripherals struct {
	Radio radio.Controller
	Net   netcall.Client
}

// Close releases every peripheral that holds resources.
func (p Peripherals) Close() error {
	var errs []error
	if p.Radio != nil {
		errs = append(errs, p.Radio.Close())
	}
	if c, ok := p.Net.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
