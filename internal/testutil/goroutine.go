// Package testutil provides fixtures and helpers shared by tremor tests.
//
// Using t.Fatal() or t.FailNow() in goroutines causes undefined behavior because
// these methods call runtime.Goexit() which only terminates the current goroutine,
// not the test goroutine. GoroutineTest collects the returned errors instead.
package testutil

import (
	"sync"
	"testing"
	"time"
)

// GoroutineTest runs functions in goroutines and reports their errors from
// the test goroutine.
//
//	gt := testutil.NewGoroutineTest(t)
//	for i := 0; i < 8; i++ {
//	    gt.Go(func() error { return acc.Merge(part) })
//	}
//	gt.Wait()
type GoroutineTest struct {
	t      testing.TB
	wg     sync.WaitGroup
	mu     sync.Mutex
	errors []error
}

// NewGoroutineTest creates a new GoroutineTest helper.
func NewGoroutineTest(t testing.TB) *GoroutineTest {
	return &GoroutineTest{t: t}
}

// Go runs fn in a goroutine. fn should return an error instead of calling
// t.Fatal.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(); err != nil {
			gt.mu.Lock()
			gt.errors = append(gt.errors, err)
			gt.mu.Unlock()
		}
	}()
}

// Wait waits for all goroutines and fails the test if any returned an error.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()
	gt.wg.Wait()

	gt.mu.Lock()
	defer gt.mu.Unlock()
	if len(gt.errors) == 0 {
		return
	}
	gt.t.Errorf("goroutine test failed with %d error(s):", len(gt.errors))
	for i, err := range gt.errors {
		gt.t.Errorf("  [%d] %v", i+1, err)
	}
	gt.t.FailNow()
}

// WaitTimeout is Wait with a deadline. Goroutines still running after d,
// for example blocked on a lock, fail the test.
func (gt *GoroutineTest) WaitTimeout(d time.Duration) {
	gt.t.Helper()

	done := make(chan struct{})
	go func() {
		gt.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d):
		gt.t.Fatalf("goroutines still running after %v", d)
	}
	gt.Wait()
}
