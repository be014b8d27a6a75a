package transform

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/components"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stream"
	"github.com/sirupsen/logrus"
)

func newTestSession(t *testing.T) *engine.Session {
	t.Helper()
	sess, err := engine.NewSession(logger.NewLogger("transform test", "info", true), c.AppName)
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func waitWithTimeout(t *testing.T, sg *stepGroup) error {
	t.Helper()
	errChan := make(chan error, 1)
	go func() { errChan <- sg.wait() }()
	select {
	case err := <-errChan:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for step group")
	}
	return nil
}

func TestErrorFromPanic(t *testing.T) {
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "an entry"
	cases := []struct {
		in       interface{}
		expected string
	}{
		{entry, "an entry"},
		{errors.New("an error"), "an error"},
		{"a string", "a string"},
		{42, "42"},
	}
	for _, tc := range cases {
		if got := errorFromPanic(tc.in).Error(); got != tc.expected {
			t.Fatalf("expected %q; got %q", tc.expected, got)
		}
	}
}

func TestStepGroupSuccess(t *testing.T) {
	sess := newTestSession(t)
	sg := newStepGroup(sess, "success")
	in := make(chan stream.Record, 3)
	for i := 0; i < 3; i++ {
		r := stream.NewRecord()
		r.SetData("n", int64(i))
		in <- r
	}
	close(in)
	count := 0
	sg.build(func() {
		out := sg.project("project", in, "n:m")
		sg.consume("count", out, func(rec stream.Record) { count++ })
	})
	if err := waitWithTimeout(t, sg); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows; got %v", count)
	}
	if st, _ := sess.Status.Load("success"); st.Status != engine.StatusComplete {
		t.Fatalf("unexpected status %v", st.Status)
	}
	if r := sg.steps.running(); len(r) != 0 {
		t.Fatalf("expected no running steps; got %v", r)
	}
}

func TestStepTracker(t *testing.T) {
	st := newStepTracker()
	a := st.waiter("a")
	b := st.waiter("b")
	a.Add()
	a.Add()
	b.Add()
	if r := st.running(); len(r) != 2 || r[0] != "a" || r[1] != "b" {
		t.Fatalf("unexpected running steps %v", r)
	}
	a.Done()
	b.Done()
	if r := st.running(); len(r) != 1 || r[0] != "a" {
		t.Fatalf("expected a to still be running; got %v", r)
	}
	if step, _ := st.slowest(); step != "b" {
		t.Fatalf("expected only b to be finished; got %q", step)
	}
	time.Sleep(10 * time.Millisecond)
	a.Done()
	st.wait()
	if step, d := st.slowest(); step != "a" || d < 10*time.Millisecond {
		t.Fatalf("expected a to be slowest; got %q after %v", step, d)
	}
}

func TestStepGroupComponentPanicShutsDownOthers(t *testing.T) {
	sess := newTestSession(t)
	sg := newStepGroup(sess, "failing")
	stuck := make(chan stream.Record) // never closed; its reader must be shutdown.
	bad := make(chan stream.Record, 1)
	r := stream.NewRecord()
	r.SetData(components.Defaults.ChanField4SourceIndex, nil)
	bad <- r
	close(bad)
	sg.build(func() {
		sg.consume("stuck", sg.project("stuck project", stuck, "a:a"), nil)
		sg.consume("bad", sg.sequence("bad sequence", bad, "id"), nil)
	})
	err := waitWithTimeout(t, sg)
	if err == nil {
		t.Fatal("expected an error from the failing component")
	}
	if st, _ := sess.Status.Load("failing"); st.Status != engine.StatusCompleteWithError || st.Error == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestStepGroupBuildPanic(t *testing.T) {
	sess := newTestSession(t)
	sg := newStepGroup(sess, "bad build")
	stuck := make(chan stream.Record)
	sg.build(func() {
		sg.consume("stuck", sg.project("stuck project", stuck, "a:a"), nil)
		sg.filter("bad filter", stuck, "NoSuchFilter", "")
	})
	if err := waitWithTimeout(t, sg); err == nil {
		t.Fatal("expected the build panic to be returned")
	}
}

func TestStepGroupSessionShutdown(t *testing.T) {
	sess := newTestSession(t)
	sg := newStepGroup(sess, "interrupted")
	stuck := make(chan stream.Record)
	sg.build(func() {
		sg.consume("stuck", sg.project("stuck project", stuck, "a:a"), nil)
	})
	sess.Shutdown()
	err := waitWithTimeout(t, sg)
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown; got %v", err)
	}
	if st, _ := sess.Status.Load("interrupted"); st.Status != engine.StatusShutdown {
		t.Fatalf("unexpected status %v", st.Status)
	}
}
