// Package hammer runs a test body from many goroutines released at once, to surface data races
// between compilations sharing options, stats or a code segment.
package hammer

import (
	"runtime"
	"sync"
	"testing"
)

// Hammer runs a test body concurrently.
//
// Callers size P and N down under -test.short, and stop once the run reports a failure:
//
//	hammer.NewHammer(t, 8, 50).Run(func(p, n int) {
//		f := compileSample(t, opts, nil)
//		require.Equal(t, want.Code, f.Code)
//	}, nil)
//	if t.Failed() {
//		return
//	}
type Hammer interface {
	// Run starts P goroutines and calls test N times from each, with p the goroutine index and
	// n the iteration. onRunning, when not nil, is called once every goroutine has started and
	// before any of them calls test. A panic in test, such as a failed require, fails t.
	Run(test func(p, n int), onRunning func())
}

// NewHammer returns a Hammer of P goroutines doing N iterations each. Every iteration compiles a
// whole function, so P*N stays in the hundreds.
func NewHammer(t *testing.T, P, N int) Hammer {
	return &hammer{t: t, P: P, N: N}
}

type hammer struct {
	t    *testing.T
	P, N int
}

// Run implements Hammer.Run
func (h *hammer) Run(test func(p, n int), onRunning func()) {
	// Fewer procs than goroutines forces them to interleave.
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(h.P / 2))

	var started, done sync.WaitGroup
	release := make(chan struct{})
	started.Add(h.P)
	done.Add(h.P)
	for p := 0; p < h.P; p++ {
		go func(p int) {
			defer done.Done()
			defer func() {
				// A panic in test fails t rather than the whole binary.
				if r := recover(); r != nil {
					h.t.Error(r)
				}
			}()
			started.Done()
			<-release
			for n := 0; n < h.N; n++ {
				test(p, n)
			}
		}(p)
	}

	started.Wait()
	if onRunning != nil {
		onRunning()
	}
	close(release)
	done.Wait()
}
