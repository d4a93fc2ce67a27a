package realtime

import (
	"context"
	"testing"
	"time"
)

func TestLoop_TimersFireInOrder(t *testing.T) {
	l := NewLoop(120)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	got := make(chan string, 4)
	l.AfterFunc(30*time.Millisecond, func() { got <- "c" })
	l.AfterFunc(10*time.Millisecond, func() { got <- "a" })
	l.AfterFunc(20*time.Millisecond, func() { got <- "b" })

	for _, want := range []string{"a", "b", "c"} {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("got %q, want %q", v, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestLoop_CancelledTimerNeverFires(t *testing.T) {
	l := NewLoop(120)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	fired := make(chan struct{}, 1)
	stop := l.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	stop()
	done := make(chan struct{})
	l.AfterFunc(40*time.Millisecond, func() { close(done) })

	<-done
	select {
	case <-fired:
		t.Error("cancelled timer fired")
	default:
	}
}

func TestLoop_FrameReceivesTimestamp(t *testing.T) {
	l := NewLoop(60)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	before := time.Now()
	stamps := make(chan time.Time, 1)
	l.RequestFrame(func(now time.Time) { stamps <- now })

	select {
	case ts := <-stamps:
		if ts.Before(before) {
			t.Errorf("frame timestamp %v before request %v", ts, before)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never fired")
	}
}

func TestLoop_PostRunsOnLoop(t *testing.T) {
	l := NewLoop(60)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	done := make(chan int, 1)
	counter := 0
	for i := 0; i < 10; i++ {
		l.Post(func() { counter++ })
	}
	l.Post(func() { done <- counter })
	if got := <-done; got != 10 {
		t.Errorf("counter %d, want 10", got)
	}
}

func TestLoop_StopClosesDone(t *testing.T) {
	l := NewLoop(60)
	l.Start(context.Background())
	l.Stop()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Stop")
	}
}
