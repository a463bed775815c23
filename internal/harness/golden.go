package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/drill/internal/payload"
)

// TraceSnapshot captures the calls a scripted run made.
type TraceSnapshot struct {
	Script string
	Calls  []Call
}

// Canonical renders the snapshot as canonical JSON. Call outputs are left
// out; the rule name identifies which canned response was served.
func (s TraceSnapshot) Canonical() []byte {
	calls := make(payload.Array, len(s.Calls))
	for i, c := range s.Calls {
		calls[i] = payload.Object{
			"seq":     payload.Int(c.Seq),
			"command": payload.String(c.Command),
			"rule":    payload.String(c.Rule),
			"exit":    payload.Int(c.Exit),
		}
	}
	return []byte(payload.MustMarshal(payload.Object{
		"script": payload.String(s.Script),
		"calls":  calls,
	}))
}

// AssertGolden compares the backend's trace against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/... -update
func AssertGolden(t *testing.T, name string, b *Backend) {
	t.Helper()

	snapshot := TraceSnapshot{Script: b.script.Name, Calls: b.Calls()}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot.Canonical())
}
