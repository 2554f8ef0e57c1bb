// Package diag renders a snapshot of the frame table as a pprof
// profile: one sample per frame, labeled with the page occupying it
// (or "free"). Loading the dump in `go tool pprof` gives a
// point-in-time picture of who holds physical memory, which is the
// closest this subsystem has to a heap profile.
package diag

import (
	"io"

	"github.com/google/pprof/profile"

	"vmkaist/frame"
)

/// FrameProfile builds a pprof Profile with one sample per frame
/// currently linked into frames.
func FrameProfile(frames *frame.Table) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "frames", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "snapshot", Unit: "count"},
		Period:     1,
	}

	for _, s := range frames.Snapshots() {
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{1},
			Label: map[string][]string{"owner": {s.Label}},
		})
	}
	return p
}

/// Write serializes p in pprof's gzip'd protobuf format.
func Write(p *profile.Profile, w io.Writer) error {
	return p.Write(w)
}
