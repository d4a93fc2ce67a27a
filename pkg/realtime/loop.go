package realtime

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DefaultFrameRate is the frame clock rate used when a loop is created with a
// non-positive rate.
const DefaultFrameRate = 60

// Loop is a single-goroutine event loop. Delayed callbacks, frame callbacks and
// posted functions all run on the loop goroutine, one at a time, so state owned
// by those callbacks needs no locking.
type Loop struct {
	mu       sync.Mutex
	timers   timerQueue
	frames   []*entry
	frameAt  time.Time
	posts    []func()
	seq      uint64
	origin   time.Time
	interval time.Duration
	wake     chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a stopped loop whose frame clock ticks frameRate times per second.
func NewLoop(frameRate int) *Loop {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Loop{
		origin:   time.Now(),
		interval: time.Second / time.Duration(frameRate),
		wake:     make(chan struct{}, 1),
	}
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc runs fn on the loop goroutine once d has elapsed. Timers with the
// same due time run in registration order.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	l.mu.Lock()
	l.seq++
	e := &entry{due: time.Now().Add(d), seq: l.seq, fn: fn}
	heap.Push(&l.timers, e)
	l.mu.Unlock()
	l.notify()
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e.canceled {
			return
		}
		e.canceled = true
		if e.index >= 0 {
			heap.Remove(&l.timers, e.index)
		}
	}
}

// RequestFrame runs fn at the next frame boundary with the frame timestamp.
// A request made from inside a frame callback is served on the following frame.
func (l *Loop) RequestFrame(fn func(now time.Time)) (cancel func()) {
	now := time.Now()
	l.mu.Lock()
	l.seq++
	e := &entry{seq: l.seq, frame: fn, index: -1}
	if len(l.frames) == 0 {
		l.frameAt = nextBoundary(l.origin, l.interval, now)
	}
	l.frames = append(l.frames, e)
	l.mu.Unlock()
	l.notify()
	return func() {
		l.mu.Lock()
		e.canceled = true
		l.mu.Unlock()
	}
}

// Post queues fn to run on the loop goroutine as soon as possible.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posts = append(l.posts, fn)
	l.mu.Unlock()
	l.notify()
}

// Start runs the loop on its own goroutine until ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		cancel()
		return
	}
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		l.Run(ctx)
	}()
}

// Stop ends a loop started with Start. Pending callbacks are dropped.
// It does not wait for the loop goroutine; use Done for that.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once a loop started with Start has exited.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.done
}

// Run processes callbacks on the calling goroutine until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.drain(time.Now())

		var timeout <-chan time.Time
		var timer *time.Timer
		if wait, ok := l.nextWait(time.Now()); ok {
			timer = time.NewTimer(wait)
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-timeout:
			// Something is due; drain on the next iteration.
		case <-l.wake:
			if timer != nil && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

func (l *Loop) drain(now time.Time) {
	l.runPosts()

	for {
		l.mu.Lock()
		if l.timers.Len() == 0 || l.timers[0].due.After(now) {
			l.mu.Unlock()
			break
		}
		e := heap.Pop(&l.timers).(*entry)
		canceled := e.canceled
		l.mu.Unlock()
		if !canceled {
			e.fn()
		}
		l.runPosts()
	}

	l.mu.Lock()
	if len(l.frames) == 0 || now.Before(l.frameAt) {
		l.mu.Unlock()
		return
	}
	batch := l.frames
	l.frames = nil
	l.mu.Unlock()
	for _, e := range batch {
		l.mu.Lock()
		canceled := e.canceled
		l.mu.Unlock()
		if !canceled {
			e.frame(now)
		}
	}
	l.runPosts()
}

func (l *Loop) runPosts() {
	for {
		l.mu.Lock()
		if len(l.posts) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.posts[0]
		l.posts = l.posts[1:]
		l.mu.Unlock()
		fn()
	}
}

func (l *Loop) nextWait(now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.posts) > 0 {
		return 0, true
	}
	var next time.Time
	if l.timers.Len() > 0 {
		next = l.timers[0].due
	}
	if len(l.frames) > 0 && (next.IsZero() || l.frameAt.Before(next)) {
		next = l.frameAt
	}
	if next.IsZero() {
		return 0, false
	}
	wait := next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// nextBoundary returns the first frame boundary strictly after now.
func nextBoundary(origin time.Time, interval time.Duration, now time.Time) time.Time {
	elapsed := now.Sub(origin)
	if elapsed < 0 {
		return origin
	}
	n := elapsed/interval + 1
	return origin.Add(n * interval)
}

type entry struct {
	due      time.Time
	seq      uint64
	fn       func()
	frame    func(time.Time)
	canceled bool
	index    int
}

// timerQueue orders entries by due time, then by registration order.
type timerQueue []*entry

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
