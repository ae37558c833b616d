//go:build !windows

package sdr

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/roman-kulish/spectrum-watch/internal/sdr/driver"
)

// FindRuntime looks up the vendor tool in PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", driver.NewRuntimeError(fmt.Sprintf("`%s` not found in PATH", runtime), err)
		}
		return "", driver.NewRuntimeError(fmt.Sprintf("failed to locate `%s`", runtime), err)
	}

	return binPath, nil
}
