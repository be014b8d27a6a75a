package transform

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/components"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
	"github.com/sirupsen/logrus"
)

// ErrShutdown is returned by a step group that was stopped by a session shutdown.
var ErrShutdown = errors.New("shutdown requested")

// stepGroup tracks the components of one transform.
// The first failure is saved and every component is asked to shutdown.
type stepGroup struct {
	log          logger.Logger
	sess         *engine.Session
	name         string
	steps        *stepTracker
	mu           sync.Mutex
	controlChans []chan components.ControlAction
	err          error
	failed       chan struct{}
	failOnce     sync.Once
}

func newStepGroup(sess *engine.Session, name string) *stepGroup {
	sess.Status.Set(name, engine.StatusRunning, nil)
	return &stepGroup{
		log:    sess.Log,
		sess:   sess,
		name:   name,
		steps:  newStepTracker(),
		failed: make(chan struct{}),
	}
}

// stepName returns the canonical name of a step in this group.
func (sg *stepGroup) stepName(step string) string {
	return fmt.Sprintf("%v.%v", sg.name, step)
}

func (sg *stepGroup) componentWaiter(stepName string) components.ComponentWaiter {
	return sg.steps.waiter(stepName)
}

func (sg *stepGroup) stepWatcher(stepName string) *stats.StepWatcher {
	return sg.sess.StepWatcher(stepName)
}

// addControl saves a component's control channel so it can be shutdown if the group fails.
func (sg *stepGroup) addControl(c chan components.ControlAction) {
	sg.mu.Lock()
	defer sg.mu.Unlock()
	sg.controlChans = append(sg.controlChans, c)
	if sg.err != nil { // if the group has already failed...
		sendShutdown(c)
	}
}

func sendShutdown(c chan components.ControlAction) {
	select {
	case c <- components.ControlAction{Action: components.Shutdown, ResponseChan: make(chan error, 1)}:
	default: // a request is already pending.
	}
}

// fail saves err if it is the first error and sends Shutdown to every component.
func (sg *stepGroup) fail(err error) {
	sg.failOnce.Do(func() {
		sg.mu.Lock()
		defer sg.mu.Unlock()
		sg.err = err
		sg.log.Error(sg.name, " failed: ", err)
		sg.log.Debug(sg.name, " shutting down steps ", sg.steps.running())
		close(sg.failed)
		for _, c := range sg.controlChans {
			sendShutdown(c)
		}
	})
}

// panicHandler returns a function for components to defer that converts a panic into a group failure.
func (sg *stepGroup) panicHandler() components.PanicHandlerFunc {
	return func() {
		if r := recover(); r != nil {
			sg.fail(errorFromPanic(r))
		}
	}
}

// errorFromPanic extracts the message from a recovered value.
func errorFromPanic(r interface{}) error {
	switch x := r.(type) {
	case *logrus.Entry:
		return errors.New(x.Message)
	case error:
		return x
	case string:
		return errors.New(x)
	default:
		return fmt.Errorf("%v", x)
	}
}

// build runs fn, which wires up the group's components, and fails the group if it panics.
func (sg *stepGroup) build(fn func()) {
	defer sg.panicHandler()()
	fn()
}

// consume reads dataChan until it is closed, calling fn for each record, so that the last step in a chain
// always has a reader. It stops early if the group fails.
func (sg *stepGroup) consume(step string, dataChan chan stream.Record, fn func(rec stream.Record)) {
	name := sg.stepName(step)
	w := sg.componentWaiter(name)
	w.Add()
	go func() {
		defer w.Done()
		defer sg.panicHandler()()
		for {
			select {
			case rec, ok := <-dataChan:
				if !ok {
					return
				}
				if fn != nil {
					fn(rec)
				}
			case <-sg.failed:
				return
			}
		}
	}()
}

// wait blocks until every component has finished and returns the first error.
// A session shutdown while waiting fails the group with ErrShutdown.
func (sg *stepGroup) wait() error {
	finished := make(chan struct{})
	go func() {
		select {
		case <-sg.sess.Done():
			sg.fail(ErrShutdown)
		case <-finished:
		}
	}()
	sg.steps.wait()
	close(finished)
	sg.mu.Lock()
	err := sg.err
	sg.mu.Unlock()
	switch {
	case err == nil:
		sg.sess.Status.Set(sg.name, engine.StatusComplete, nil)
		sg.log.Info(sg.name, " complete")
		if step, d := sg.steps.slowest(); step != "" {
			sg.log.Debug(sg.name, " slowest step was ", step, " taking ", d.Round(time.Millisecond))
		}
	case errors.Is(err, ErrShutdown):
		sg.sess.Status.Set(sg.name, engine.StatusShutdown, err)
	default:
		sg.sess.Status.Set(sg.name, engine.StatusCompleteWithError, err)
	}
	return errors.Wrap(err, sg.name)
}
