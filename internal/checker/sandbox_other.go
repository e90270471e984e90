//go:build !linux

package checker

import "errors"

// sandbox reports that no in-process sandboxing facility is available on
// this platform. The emitted checker carries its own macOS sandbox.
func sandbox() error {
	return errors.New("no sandboxing facilities available")
}
