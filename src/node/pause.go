package node

import (
	"errors"
)

// ErrPauseCancelled is the outcome of a pause ended by a branch switch.
var ErrPauseCancelled = errors.New("pause cancelled by branch switch")

// Deferred is settled once, when the pause it belongs to ends.
type Deferred struct {
	done chan struct{}
	err  error
}

func newDeferred() *Deferred {
	return &Deferred{
		done: make(chan struct{}),
	}
}

// Done is closed when the Deferred is settled.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Err returns nil if the pause was released, ErrPauseCancelled if it was
// cancelled. It must only be called after Done is closed.
func (d *Deferred) Err() error {
	return d.err
}

func (d *Deferred) settle(err error) {
	select {
	case <-d.done:
		return
	default:
	}
	d.err = err
	close(d.done)
}

// pause gates the application of remote operations. While engaged, work is
// queued; releasing runs the queue in order, cancelling runs it with
// cancelled set so that nothing reaches the buffers.
type pause struct {
	paused bool
	signal *Deferred
	queue  []func(cancelled bool)
}

func (p *pause) engage() *Deferred {
	if p.paused {
		return p.signal
	}
	p.paused = true
	p.signal = newDeferred()
	return p.signal
}

func (p *pause) release() {
	p.end(false, nil)
}

func (p *pause) cancel() {
	p.end(true, ErrPauseCancelled)
}

func (p *pause) end(cancelled bool, err error) {
	if !p.paused {
		return
	}
	p.paused = false
	queue := p.queue
	p.queue = nil
	for _, f := range queue {
		f(cancelled)
	}
	p.signal.settle(err)
}

func (p *pause) run(f func(cancelled bool)) {
	if p.paused {
		p.queue = append(p.queue, f)
		return
	}
	f(false)
}
