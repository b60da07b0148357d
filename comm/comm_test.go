package comm

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointToPoint(t *testing.T) {
	{ // Test ring shift with non-blocking sends, data is copied at post time
		np := 4
		err := Run(np, func(w *Comm) (err error) {
			var (
				me    = w.Rank()
				right = (me + 1) % np
				left  = (me + np - 1) % np
				out   = []float64{float64(me), float64(me) * 10}
				in    = make([]float64, 2)
			)
			req := w.Isend(out, right, 7)
			out[0], out[1] = -1, -1
			if err = w.Recv(in, left, 7); err != nil {
				return
			}
			if err = WaitAll([]*Request{req}); err != nil {
				return
			}
			if in[0] != float64(left) || in[1] != float64(left)*10 {
				return fmt.Errorf("rank %d got %v", me, in)
			}
			return
		})
		assert.NoError(t, err)
	}
	{ // Test tags are matched independently of arrival order
		err := Run(2, func(w *Comm) (err error) {
			if w.Rank() == 0 {
				if err = w.Send([]float64{1}, 1, 1); err != nil {
					return
				}
				return w.Send([]float64{2}, 1, 2)
			}
			a, b := make([]float64, 1), make([]float64, 1)
			rb := w.Irecv(b, 0, 2)
			if err = w.Recv(a, 0, 1); err != nil {
				return
			}
			if err = rb.Wait(); err != nil {
				return
			}
			if a[0] != 1 || b[0] != 2 {
				return fmt.Errorf("got %v %v", a, b)
			}
			return
		})
		assert.NoError(t, err)
	}
	{ // Test size mismatch and bad arguments
		err := Run(2, func(w *Comm) (err error) {
			if w.Rank() == 0 {
				return w.Send([]float64{1, 2, 3}, 1, 0)
			}
			return w.Recv(make([]float64, 2), 0, 0)
		})
		assert.True(t, errors.Is(err, ErrTruncated))
		err = Run(1, func(w *Comm) error { return w.Send(nil, 3, 0) })
		assert.True(t, errors.Is(err, ErrBadRank))
		err = Run(1, func(w *Comm) error { return w.Send(nil, 0, -4) })
		assert.True(t, errors.Is(err, ErrBadTag))
	}
}

func TestAbort(t *testing.T) {
	boom := errors.New("boom")
	err := Run(3, func(w *Comm) (err error) {
		if w.Rank() == 2 {
			return boom
		}
		// Nobody ever sends this
		return w.Recv(make([]float64, 1), 2, 0)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestUndelivered(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	require.NoError(t, Run(2, func(w *Comm) error {
		if w.Rank() == 0 {
			return w.Send([]float64{1}, 1, 3)
		}
		return nil
	}))
	assert.Contains(t, buf.String(), "rank 1 finished with 1 undelivered messages")
	buf.Reset()
	require.NoError(t, Run(2, func(w *Comm) error { return w.Barrier() }))
	assert.Empty(t, buf.String())
}

func TestCollectives(t *testing.T) {
	np := 5
	var (
		mu       sync.Mutex
		gathered [][]float64
	)
	err := Run(np, func(w *Comm) (err error) {
		var (
			res []float64
		)
		if res, err = w.Gather([]float64{float64(w.Rank()), 1}, 2); err != nil {
			return
		}
		if w.Rank() == 2 {
			mu.Lock()
			gathered = append(gathered, res)
			mu.Unlock()
		} else if res != nil {
			return fmt.Errorf("non-root rank %d received %v", w.Rank(), res)
		}
		buf := make([]float64, 3)
		if w.Rank() == 4 {
			buf = []float64{3, 1, 4}
		}
		if err = w.Bcast(buf, 4); err != nil {
			return
		}
		if buf[0] != 3 || buf[1] != 1 || buf[2] != 4 {
			return fmt.Errorf("rank %d bcast got %v", w.Rank(), buf)
		}
		return w.Barrier()
	})
	require.NoError(t, err)
	require.Len(t, gathered, 1)
	assert.Equal(t, []float64{0, 1, 1, 1, 2, 1, 3, 1, 4, 1}, gathered[0])
}

func TestCreate(t *testing.T) {
	err := Run(4, func(w *Comm) (err error) {
		var (
			sub, other *Comm
		)
		if sub, err = w.Create([]int{3, 1}, "odd"); err != nil {
			return
		}
		if w.Rank()%2 == 0 {
			if sub != nil {
				return fmt.Errorf("rank %d should not be a member", w.Rank())
			}
			return
		}
		if other, err = w.Create([]int{1, 3}, "other"); err != nil {
			return
		}
		if sub.Size() != 2 || sub.Rank() != w.Rank()/2 {
			return fmt.Errorf("bad sub communicator %d/%d", sub.Rank(), sub.Size())
		}
		if sub.Context() == w.Context() || sub.Context() == other.Context() {
			return fmt.Errorf("contexts are not distinct")
		}
		// Same tag on two communicators must not cross
		peer := 1 - sub.Rank()
		if err = sub.Send([]float64{1}, peer, 0); err != nil {
			return
		}
		if err = other.Send([]float64{2}, peer, 0); err != nil {
			return
		}
		a, b := make([]float64, 1), make([]float64, 1)
		if err = other.Recv(b, peer, 0); err != nil {
			return
		}
		if err = sub.Recv(a, peer, 0); err != nil {
			return
		}
		if a[0] != 1 || b[0] != 2 {
			return fmt.Errorf("messages crossed communicators: %v %v", a, b)
		}
		assert.Equal(t, 3, sub.WorldRank(1))
		return sub.Barrier()
	})
	assert.NoError(t, err)
	err = Run(2, func(w *Comm) (err error) {
		_, err = w.Create([]int{0, 0}, "dup")
		return
	})
	assert.Error(t, err)
}
