//go:build linux

package harness

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

var errAffinityUnsupported = errors.New("cpu affinity unsupported")

// pinCPUs restricts every thread of the process to cpus and returns a
// function restoring the previous mask. Threads created later inherit the
// mask of the thread that spawns them.
func pinCPUs(cpus []int) (func() error, error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("get affinity: %w", err)
	}

	var set unix.CPUSet
	set.Zero()

	for _, cpu := range cpus {
		set.Set(cpu)

		if !set.IsSet(cpu) {
			return nil, fmt.Errorf("cpu %d out of range", cpu)
		}
	}

	if err := applyAffinity(&set); err != nil {
		_ = applyAffinity(&prev)

		return nil, err
	}

	return func() error {
		return applyAffinity(&prev)
	}, nil
}

func applyAffinity(set *unix.CPUSet) error {
	entries, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	for _, entry := range entries {
		tid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		err = unix.SchedSetaffinity(tid, set)
		// The thread may have exited since the listing.
		if err != nil && !errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("set affinity of thread %d: %w", tid, err)
		}
	}

	return nil
}
