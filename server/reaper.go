package server

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Reaper collects the exit status of spawned children so none of them
// lingers as a zombie. Every SIGCHLD, and every newly tracked child, triggers
// a non-blocking sweep over all tracked pids. Only tracked pids are waited
// for, so other users of os/exec in the process are unaffected.
type Reaper struct {
	log zerolog.Logger

	mu       sync.Mutex
	children map[int]*os.Process
	running  bool

	sigs  chan os.Signal
	nudge chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// NewReaper creates an unarmed reaper
func NewReaper(logger zerolog.Logger) *Reaper {
	return &Reaper{
		log:      logger.With().Str("component", "reaper").Logger(),
		children: make(map[int]*os.Process),
		nudge:    make(chan struct{}, 1),
	}
}

// Start arms the reaper. Calling Start on a running reaper is a no-op.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true

	r.sigs = make(chan os.Signal, 1)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	signal.Notify(r.sigs, syscall.SIGCHLD)

	go r.loop(r.sigs, r.stop, r.done)
}

// Stop disarms the reaper and waits for its goroutine to exit. Children that
// are still running stay tracked and are collected after the next Start.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	signal.Stop(r.sigs)
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
}

// Track registers a freshly spawned child
func (r *Reaper) Track(proc *os.Process) {
	r.mu.Lock()
	r.children[proc.Pid] = proc
	r.mu.Unlock()

	// The child may already have exited before it was tracked
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

// Pending reports how many tracked children have not been reaped yet
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

func (r *Reaper) loop(sigs <-chan os.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-sigs:
		case <-r.nudge:
		}
		r.Sweep()
	}
}

// Sweep reaps every tracked child that has terminated without blocking.
// Signals coalesce, so one sweep may collect several children.
func (r *Reaper) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for pid, proc := range r.children {
		var status unix.WaitStatus
		wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		for errors.Is(err, unix.EINTR) {
			wpid, err = unix.Wait4(pid, &status, unix.WNOHANG, nil)
		}

		switch {
		case err != nil:
			// ECHILD: already collected elsewhere, stop tracking it
			r.log.Debug().Int("pid", pid).Err(err).Msg("child no longer waitable")
		case wpid == pid:
			r.log.Debug().Int("pid", pid).Int("status", exitCode(status)).Msg("child reaped")
		default:
			continue
		}

		proc.Release()
		delete(r.children, pid)
		reaped++
	}
	return reaped
}

func exitCode(status unix.WaitStatus) int {
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return status.ExitStatus()
}
