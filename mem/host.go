package mem

import (
	"github.com/prometheus/procfs"
)

// / NewHostpoolFraction sizes a Hostpool_t as a fraction of the host's
// / currently available memory, read from /proc/meminfo. It exists so
// / the demo/glue binary can boot a frame pool scaled to the machine it
// / runs on instead of a hardcoded page count, the same way an exporter
// / samples procfs rather than assuming a fixed host shape.
func NewHostpoolFraction(procPath string, fraction float64) (*Hostpool_t, error) {
	if fraction <= 0 || fraction > 1 {
		fraction = 0.05
	}
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, err
	}
	info, err := fs.Meminfo()
	if err != nil {
		return nil, err
	}
	var availKB uint64
	if info.MemAvailable != nil {
		availKB = *info.MemAvailable
	} else if info.MemFree != nil {
		availKB = *info.MemFree
	}
	availBytes := availKB * 1024
	npages := int(float64(availBytes) * fraction / PageSize)
	if npages < 16 {
		npages = 16
	}
	return NewHostpool(npages), nil
}
