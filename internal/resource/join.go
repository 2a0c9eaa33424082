package resource

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Join waits for a set of tasks that may grow while it runs. It starts
// with one outstanding task, the one that creates it. Tasks may only be
// added while at least one is outstanding, and the done channel is closed
// exactly once, when the count returns to zero.
type Join struct {
	n    atomic.Int64
	done chan struct{}
	once sync.Once
}

// NewJoin returns a Join holding the caller's task.
func NewJoin() *Join {
	j := &Join{done: make(chan struct{})}
	j.n.Store(1)
	return j
}

// Add registers one more outstanding task. It panics if the join already
// finished.
func (j *Join) Add() {
	for {
		n := j.n.Load()
		if n <= 0 {
			panic("resource: Add called on a finished join")
		}
		if j.n.CompareAndSwap(n, n+1) {
			return
		}
	}
}

// Done marks one task finished. It panics if the count would go negative.
func (j *Join) Done() {
	n := j.n.Add(-1)
	switch {
	case n < 0:
		panic(fmt.Sprintf("resource: join counter went negative (%d)", n))
	case n == 0:
		j.once.Do(func() { close(j.done) })
	}
}

// Go runs f as a new task. A panic in f is passed to recovered, if set, and
// never escapes the goroutine.
func (j *Join) Go(f func(), recovered func(any)) {
	j.Add()
	go func() {
		defer j.Done()
		defer func() {
			if p := recover(); p != nil && recovered != nil {
				recovered(p)
			}
		}()
		f()
	}()
}

// Pending returns the number of outstanding tasks.
func (j *Join) Pending() int64 {
	return j.n.Load()
}

// Finished is closed once every task is done.
func (j *Join) Finished() <-chan struct{} {
	return j.done
}
