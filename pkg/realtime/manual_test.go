package realtime

import (
	"testing"
	"time"
)

func TestManualLoop_TimersEqualDueKeepRegistrationOrder(t *testing.T) {
	m := NewManualLoop(time.Unix(0, 0), 60)
	var got []string
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "first") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "second") })
	m.AfterFunc(50*time.Millisecond, func() { got = append(got, "early") })

	m.Advance(99 * time.Millisecond)
	if len(got) != 1 || got[0] != "early" {
		t.Fatalf("after 99ms got %v, want [early]", got)
	}
	m.Advance(time.Millisecond)
	want := []string{"early", "first", "second"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] %q, want %q", i, got[i], want[i])
		}
	}
}

func TestManualLoop_TimerSeesDueTime(t *testing.T) {
	start := time.Unix(100, 0)
	m := NewManualLoop(start, 60)
	var seen time.Time
	m.AfterFunc(250*time.Millisecond, func() { seen = m.Now() })
	m.Advance(time.Second)
	if want := start.Add(250 * time.Millisecond); !seen.Equal(want) {
		t.Errorf("callback saw %v, want %v", seen, want)
	}
	if want := start.Add(time.Second); !m.Now().Equal(want) {
		t.Errorf("Now %v, want %v", m.Now(), want)
	}
}

func TestManualLoop_FramesChainOnePerInterval(t *testing.T) {
	m := NewManualLoop(time.Unix(0, 0), 50)
	count := 0
	var tick func(time.Time)
	tick = func(time.Time) {
		count++
		m.RequestFrame(tick)
	}
	m.RequestFrame(tick)
	m.Advance(time.Second)
	if count != 50 {
		t.Errorf("frames %d, want 50", count)
	}
}

func TestManualLoop_CancelFrame(t *testing.T) {
	m := NewManualLoop(time.Unix(0, 0), 60)
	fired := false
	stop := m.RequestFrame(func(time.Time) { fired = true })
	stop()
	m.Advance(100 * time.Millisecond)
	if fired {
		t.Error("cancelled frame fired")
	}
}

func TestManualLoop_CancelFromEarlierCallback(t *testing.T) {
	m := NewManualLoop(time.Unix(0, 0), 60)
	fired := false
	var stop func()
	m.AfterFunc(10*time.Millisecond, func() { stop() })
	stop = m.AfterFunc(10*time.Millisecond, func() { fired = true })
	m.Advance(20 * time.Millisecond)
	if fired {
		t.Error("timer cancelled by a sibling at the same instant still fired")
	}
}

func TestManualLoop_PostRunsOnAdvance(t *testing.T) {
	m := NewManualLoop(time.Unix(0, 0), 60)
	ran := false
	m.Post(func() { ran = true })
	if ran {
		t.Fatal("post ran before Advance")
	}
	m.Advance(0)
	if !ran {
		t.Error("post did not run on Advance")
	}
}
