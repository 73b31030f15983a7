// Package ble talks to heart-rate wearables over Bluetooth Low Energy using
// the host's default adapter.
package ble

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

var (
	enableOnce sync.Once
	enableErr  error
)

// Adapter enables and returns the default adapter. Enabling happens once per
// process; later calls return the first result.
func Adapter() (*bluetooth.Adapter, error) {
	enableOnce.Do(func() {
		if err := bluetooth.DefaultAdapter.Enable(); err != nil {
			enableErr = fmt.Errorf("enable bluetooth adapter: %w", err)
		}
	})
	if enableErr != nil {
		return nil, enableErr
	}
	return bluetooth.DefaultAdapter, nil
}
