// Package loop holds the work that the UI thread runs between window events:
// tasks posted from other goroutines and frame callbacks that fire once per
// display refresh.
package loop

import "sync"

// FrameFunc is a frame callback. now is the host clock in seconds.
type FrameFunc func(now float64)

// Queue is safe for use from any goroutine. Run* methods must only be called
// from the UI thread.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	frames []FrameFunc
	wake   func()
}

// New returns a Queue. wake, if not nil, is called after every Post or
// RequestFrame so a blocked event loop can notice the new work.
func New(wake func()) *Queue {
	return &Queue{wake: wake}
}

// Post schedules f to run on the UI thread.
func (q *Queue) Post(f func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, f)
	q.mu.Unlock()
	if q.wake != nil {
		q.wake()
	}
}

// RequestFrame schedules cb to run on the next display refresh. A callback
// must request itself again to keep animating.
func (q *Queue) RequestFrame(cb FrameFunc) {
	q.mu.Lock()
	q.frames = append(q.frames, cb)
	q.mu.Unlock()
	if q.wake != nil {
		q.wake()
	}
}

// RunTasks runs every posted task, including tasks posted by the tasks being
// run, and returns how many ran.
func (q *Queue) RunTasks() int {
	n := 0
	for {
		q.mu.Lock()
		tasks := q.tasks
		q.tasks = nil
		q.mu.Unlock()
		if len(tasks) == 0 {
			return n
		}
		for _, task := range tasks {
			task()
			n++
		}
	}
}

// RunFrame runs the frame callbacks that were requested before the call.
// Callbacks requested while running wait for the next frame.
func (q *Queue) RunFrame(now float64) int {
	q.mu.Lock()
	frames := q.frames
	q.frames = nil
	q.mu.Unlock()
	for _, cb := range frames {
		cb(now)
	}
	return len(frames)
}

// FramePending reports whether any frame callback is waiting.
func (q *Queue) FramePending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames) > 0
}
