package comm

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/notargets/golbm/utils"
)

var ErrAborted = errors.New("run aborted by another rank")

// localTransport connects goroutine ranks through a shared MailBox
type localTransport struct {
	rank int
	mb   *utils.MailBox[[]float64]
}

// NewLocalTransports returns one connected Transport per rank
func NewLocalTransports(np int) (tt []Transport) {
	tt, _ = newLocalTransports(np)
	return
}

func newLocalTransports(np int) (tt []Transport, mb *utils.MailBox[[]float64]) {
	mb = utils.NewMailBox[[]float64](np)
	tt = make([]Transport, np)
	for r := range tt {
		tt[r] = &localTransport{rank: r, mb: mb}
	}
	return
}

func (lt *localTransport) Rank() int { return lt.rank }

func (lt *localTransport) Size() int { return lt.mb.NP }

func (lt *localTransport) Send(dst int, context uint64, tag int, data []float64) error {
	msg := make([]float64, len(data))
	copy(msg, data)
	return lt.mb.PostMessage(lt.rank, dst, context, tag, msg)
}

func (lt *localTransport) Recv(src int, context uint64, tag int) (msg []float64, err error) {
	if msg, err = lt.mb.ReceiveMessage(lt.rank, src, context, tag); errors.Is(err, utils.ErrMailBoxClosed) {
		err = fmt.Errorf("rank %d waiting on rank %d tag %d: %w", lt.rank, src, tag, ErrAborted)
	}
	return
}

func (lt *localTransport) Abort() { lt.mb.Close() }

// Close is a no-op, queued messages stay deliverable to ranks still running
func (lt *localTransport) Close() error { return nil }

// Run executes f on np goroutine ranks sharing one world. The first rank to
// fail aborts the others, the returned error is that failure. Messages left
// undelivered by a clean run are reported as a warning.
func Run(np int, f func(world *Comm) error) (err error) {
	var (
		wg   sync.WaitGroup
		errs = make([]error, np)
	)
	tt, mb := newLocalTransports(np)
	for r := 0; r < np; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			if errs[r] = f(NewWorld(tt[r])); errs[r] != nil {
				tt[r].Abort()
			}
		}(r)
	}
	wg.Wait()
	for r, e := range errs {
		if e != nil && !errors.Is(e, ErrAborted) {
			return fmt.Errorf("rank %d: %w", r, e)
		}
	}
	for r, e := range errs {
		if e != nil {
			return fmt.Errorf("rank %d: %w", r, e)
		}
	}
	for r := 0; r < np; r++ {
		if n := mb.Pending(r); n > 0 {
			log.Printf("warning: rank %d finished with %d undelivered messages", r, n)
		}
	}
	return
}
