// Package kconfig holds the boot-time tunables of the hosted kernel,
// the Go analogue of the teacher's KernelProperties struct populated
// from the multiboot/ATAG path before kernel.Boot runs.
package kconfig

import "time"

// Config collects every tunable named or implied by spec.md.
type Config struct {
	// MaxBuddyOrder bounds the largest physical-allocator batch size
	// (spec.md §3, MAX_BUDDY_BATCH_SIZE = 2^MaxBuddyOrder pages).
	MaxBuddyOrder int

	// PriorityLevels is the number of scheduler ready queues (spec.md
	// §4.4 names 32).
	PriorityLevels int

	// TickRate is the PIT frequency driving preemption (spec.md §4.4
	// default 50 Hz).
	TickRate time.Duration

	// PathTableSize is the capacity of the VFS path-node hash table
	// (spec.md §3 names 500).
	PathTableSize int

	// DefaultQueueCapacity is a default Queue[T] bound for callers to
	// pass; ksync.NewQueue always takes the bound explicitly and does
	// not read this field.
	DefaultQueueCapacity int

	// OpenFileTableSize bounds a Process's open-file table (spec.md §3).
	OpenFileTableSize int
}

// Default returns the configuration spec.md's numeric constants imply.
func Default() Config {
	return Config{
		MaxBuddyOrder:        10, // up to 1024 contiguous pages per batch
		PriorityLevels:       32,
		TickRate:             20 * time.Millisecond, // 50 Hz
		PathTableSize:        500,
		DefaultQueueCapacity: 16,
		OpenFileTableSize:    64,
	}
}
