// Package stats provides cheap, togglable counters for the VM
// subsystem's hot paths (faults, evictions, swap I/O). These are
// distinct from the Prometheus collectors in package metrics: Counter_t
// is meant to cost nothing when Enabled is false and to be read out of
// process via Stats2String for ad-hoc debugging, while metrics exports
// a running process's counts to an external scraper.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// Enabled gates every Counter_t.Inc call. Flip to false (e.g. in a
// benchmark) to measure the subsystem with accounting compiled out of
// the hot path in spirit, if not literally, since Go cannot remove the
// branch at compile time the way a build tag would.
var Enabled = true

/// Counter_t is a statistical counter safe for concurrent increment.
type Counter_t int64

/// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

/// Add increments the counter by n.
func (c *Counter_t) Add(n int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), n)
	}
}

/// Get reads the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

/// Stats2String renders every Counter_t field of st as "name: value"
/// lines. st must be a pointer to a struct.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Addr().Interface().(*Counter_t)
			s += v.Type().Field(i).Name + ": " + strconv.FormatInt(n.Get(), 10) + "\n"
		}
	}
	return s
}
