package network

import (
	"errors"
	"sync"
)

// ErrNoDriver is returned by NewDialer when no transport was registered.
var ErrNoDriver = errors.New("network: no transport driver registered")

var (
	driverMu sync.RWMutex
	driver   func(Credentials) (Dialer, error)
)

// RegisterDriver installs the concrete transport factory. The transport
// build registers itself from an init function, the same way database/sql
// drivers do; the core never links against a concrete protocol stack.
func RegisterDriver(factory func(Credentials) (Dialer, error)) {
	driverMu.Lock()
	defer driverMu.Unlock()

	driver = factory
}

// NewDialer builds a Dialer from the registered transport driver.
func NewDialer(creds Credentials) (Dialer, error) {
	driverMu.RLock()
	factory := driver
	driverMu.RUnlock()

	if factory == nil {
		return nil, ErrNoDriver
	}

	return factory(creds)
}
