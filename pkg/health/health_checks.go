package health

import (
	"os"
	"time"
)

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// StagingDirCheck reports whether new staged files can be created under root.
func StagingDirCheck(root string) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "staging_dir",
			Details: map[string]any{"root": root},
		}

		info, err := os.Stat(root)
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			return check
		}
		if !info.IsDir() {
			check.Status = StatusUnhealthy
			check.Message = "Not a directory"
			return check
		}

		marker, err := os.CreateTemp(root, ".health-*")
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = "Not writable: " + err.Error()
			return check
		}
		marker.Close()
		os.Remove(marker.Name())

		check.Status = StatusHealthy
		check.Message = "Writable"
		return check
	}
}

// WriterTableCheck reports the writer registry state. A poisoned table
// cannot accept appends until restart.
func WriterTableCheck(check func() error, openWriters func() int) CheckFunc {
	return func() Check {
		c := Check{
			Name:    "writer_table",
			Details: make(map[string]any),
		}
		if openWriters != nil {
			c.Details["open_writers"] = openWriters()
		}

		if err := check(); err != nil {
			c.Status = StatusUnhealthy
			c.Message = err.Error()
		} else {
			c.Status = StatusHealthy
			c.Message = "Accepting appends"
		}
		return c
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := float64(alloc) / float64(sys) * 100

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
