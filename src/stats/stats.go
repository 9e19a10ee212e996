// Package stats provides cheap, compile-time-gated instrumentation
// counters for the virtual-memory subsystem: fault counts, eviction
// counts, and swap I/O timings. Counters are atomic; updates are
// skipped entirely when the Stats/Timing flags are off, so a build
// that disables them pays nothing for fields it never reads.
package stats

import "reflect"
import "sync/atomic"
import "strconv"
import "strings"
import "time"
import "unsafe"

const Stats = true
const Timing = true

// Counter_t is a statistical counter, e.g. the number of page faults
// serviced or frames evicted.
type Counter_t int64

// Cycles_t accumulates elapsed wall-clock time spent in some
// operation, e.g. total time blocked on swap I/O.
type Cycles_t int64

// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

// Add adds delta to the counter.
func (c *Counter_t) Add(delta int64) {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, delta)
	}
}

// Since adds the time elapsed since start to the cycle counter.
func (c *Cycles_t) Since(start time.Time) {
	if Timing {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, int64(time.Since(start)))
	}
}

// Stats2String converts a struct of Counter_t/Cycles_t fields to a
// printable summary, for the dump a process's exit path or a
// diagnostic command prints.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		name := v.Type().Field(i).Name
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + name + ": " + time.Duration(n).String()
		}
	}
	return s + "\n"
}
