//go:build !linux

package harness

import "errors"

var errAffinityUnsupported = errors.New("cpu affinity unsupported")

func pinCPUs(_ []int) (func() error, error) {
	return nil, errAffinityUnsupported
}
