package scheduler

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"jtlab/pkg/realtime"
)

func newLoop() *realtime.ManualLoop {
	return realtime.NewManualLoop(time.Unix(0, 0), 60)
}

func TestSchedule_FiresInDeclarationOrder(t *testing.T) {
	loop := newLoop()
	var got []string
	rec := func(name string) func() error {
		return func() error {
			got = append(got, name)
			return nil
		}
	}
	phases := []Phase{
		{Name: "a", Offset: 100 * time.Millisecond, Run: rec("a")},
		{Name: "b", Offset: 200 * time.Millisecond, Run: rec("b")},
		{Name: "c", Offset: 200 * time.Millisecond, Run: rec("c")},
		{Name: "d", Offset: 200 * time.Millisecond, Run: rec("d")},
		{Name: "e", Offset: 500 * time.Millisecond, Run: rec("e")},
	}
	done := false
	_, err := New(loop, nil).Schedule(phases, func() { done = true })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	loop.Advance(time.Second)
	want := "a,b,c,d,e"
	if strings.Join(got, ",") != want {
		t.Errorf("order %v, want %s", got, want)
	}
	if !done {
		t.Error("onAllComplete did not run")
	}
}

func TestSchedule_NothingFiresBeforeItsOffset(t *testing.T) {
	loop := newLoop()
	start := loop.Now()
	fired := map[string]time.Duration{}
	phases := []Phase{
		{Name: "visible", Offset: 500 * time.Millisecond},
		{Name: "retract", Offset: 2500 * time.Millisecond},
	}
	for i := range phases {
		name := phases[i].Name
		phases[i].Run = func() error {
			fired[name] = loop.Now().Sub(start)
			return nil
		}
	}
	if _, err := New(loop, nil).Schedule(phases, nil); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	loop.Advance(499 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	loop.Advance(3 * time.Second)
	for _, p := range phases {
		if fired[p.Name] < p.Offset {
			t.Errorf("%s fired at %v, before %v", p.Name, fired[p.Name], p.Offset)
		}
	}
}

func TestSchedule_CancelAllStopsPendingPhases(t *testing.T) {
	loop := newLoop()
	var got []string
	completed := false
	cancelAll, err := New(loop, nil).Schedule([]Phase{
		{Name: "early", Offset: 10 * time.Millisecond, Run: func() error { got = append(got, "early"); return nil }},
		{Name: "late", Offset: 100 * time.Millisecond, Run: func() error { got = append(got, "late"); return nil }},
	}, func() { completed = true })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	loop.Advance(50 * time.Millisecond)
	cancelAll()
	cancelAll()
	loop.Advance(time.Second)

	if len(got) != 1 || got[0] != "early" {
		t.Errorf("got %v, want [early]", got)
	}
	if completed {
		t.Error("onAllComplete ran after cancelAll")
	}
}

func TestSchedule_CancelFromInsideGroupStopsSiblings(t *testing.T) {
	loop := newLoop()
	var cancelAll func()
	var got []string
	cancelAll, _ = New(loop, nil).Schedule([]Phase{
		{Name: "first", Offset: 10 * time.Millisecond, Run: func() error { got = append(got, "first"); cancelAll(); return nil }},
		{Name: "second", Offset: 10 * time.Millisecond, Run: func() error { got = append(got, "second"); return nil }},
	}, nil)
	loop.Advance(time.Second)
	if len(got) != 1 {
		t.Errorf("got %v, want only the first phase", got)
	}
}

func TestSchedule_FailuresAreIsolated(t *testing.T) {
	loop := newLoop()
	var buf bytes.Buffer
	logger := log.New(&buf)
	var got []string
	_, err := New(loop, logger).Schedule([]Phase{
		{Name: "panics", Offset: 10 * time.Millisecond, Run: func() error { panic("boom") }},
		{Name: "errs", Offset: 10 * time.Millisecond, Run: func() error { return errors.New("bad") }},
		{Name: "ok", Offset: 10 * time.Millisecond, Run: func() error { got = append(got, "ok"); return nil }},
		{Name: "later", Offset: 20 * time.Millisecond, Run: func() error { got = append(got, "later"); return nil }},
	}, nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	loop.Advance(time.Second)

	if strings.Join(got, ",") != "ok,later" {
		t.Errorf("got %v, want [ok later]", got)
	}
	out := buf.String()
	if !strings.Contains(out, "panics") || !strings.Contains(out, "errs") {
		t.Errorf("log output %q should name both failing phases", out)
	}
}

func TestSchedule_RejectsDecreasingOffsets(t *testing.T) {
	_, err := New(newLoop(), nil).Schedule([]Phase{
		{Name: "b", Offset: 200 * time.Millisecond},
		{Name: "a", Offset: 100 * time.Millisecond},
	}, nil)
	if !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("err %v, want ErrOutOfOrder", err)
	}
	if err := Validate([]Phase{{Name: "neg", Offset: -time.Millisecond}}); err == nil {
		t.Error("negative offset should be rejected")
	}
}

func TestSchedule_EmptyTableCompletes(t *testing.T) {
	loop := newLoop()
	done := false
	if _, err := New(loop, nil).Schedule(nil, func() { done = true }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	loop.Advance(0)
	if !done {
		t.Error("onAllComplete should run for an empty table")
	}
}

func TestGuard(t *testing.T) {
	var g Guard
	if !g.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire() {
		t.Error("second acquire should fail while busy")
	}
	if !g.Busy() {
		t.Error("guard should report busy")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Error("acquire after release should succeed")
	}
}
