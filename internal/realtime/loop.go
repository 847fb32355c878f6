package realtime

import "context"

// loop serializes every state transition of one socket. Transport callbacks,
// caller requests, RPC results and timers all post closures here.
type loop struct {
	inbox chan func()
	done  chan struct{}
}

func newLoop() *loop {
	return &loop{
		inbox: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// post queues fn. It is dropped once the loop has stopped.
func (l *loop) post(fn func()) {
	select {
	case l.inbox <- fn:
	case <-l.done:
	}
}

// run processes posted closures until ctx is done, then runs stop on the loop.
func (l *loop) run(ctx context.Context, stop func()) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.inbox:
			fn()
		case <-ctx.Done():
			if stop != nil {
				stop()
			}
			return
		}
	}
}
