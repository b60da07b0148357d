package wsnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golbm/comm"
)

func TestFrame(t *testing.T) {
	frame := encode(99, 3, []float64{1.5, -2})
	c, tag, data, err := decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), c)
	assert.Equal(t, 3, tag)
	assert.Equal(t, []float64{1.5, -2}, data)

	_, tag, _, err = decode(encode(1, -2, nil))
	assert.NoError(t, err)
	assert.Equal(t, -2, tag)

	_, _, _, err = decode(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrBadFrame)
	_, _, _, err = decode(frame[:10])
	assert.ErrorIs(t, err, ErrBadFrame)

	{ // A count that overflows the byte length is rejected, not allocated
		huge := encode(1, 0, nil)
		binary.LittleEndian.PutUint64(huge[16:], 1<<61)
		assert.NotPanics(t, func() {
			_, _, _, err = decode(huge)
		})
		assert.ErrorIs(t, err, ErrBadFrame)
		huge = encode(1, 0, []float64{1})
		binary.LittleEndian.PutUint64(huge[16:], 1+1<<61)
		_, _, _, err = decode(huge)
		assert.ErrorIs(t, err, ErrBadFrame)
	}
}

func TestSilentPeer(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)
	saved := helloTimeout
	helloTimeout = 100 * time.Millisecond
	defer func() { helloTimeout = saved }()
	var (
		lns   = make([]net.Listener, 2)
		addrs = make([]string, 2)
		errs  = make([]error, 2)
		wg    sync.WaitGroup
	)
	for r := range lns {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		lns[r], addrs[r] = ln, ln.Addr().String()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wg.Add(1)
	go func() {
		defer wg.Done()
		tr, err := New(ctx, 0, lns[0], addrs)
		if err != nil {
			errs[0] = err
			return
		}
		defer tr.Close()
		errs[0] = tr.Send(1, 0, 1, []float64{7})
	}()
	{ // A client that never says hello is dropped by the server
		conn, _, err := websocket.DefaultDialer.Dial("ws://"+addrs[0]+path, nil)
		require.NoError(t, err)
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		var ne net.Error
		if errors.As(err, &ne) {
			assert.False(t, ne.Timeout())
		}
		conn.Close()
	}
	tr, err := New(ctx, 1, lns[1], addrs)
	require.NoError(t, err)
	msg, err := tr.Recv(0, 0, 1)
	assert.NoError(t, err)
	assert.Equal(t, []float64{7}, msg)
	wg.Wait()
	assert.NoError(t, errs[0])
	assert.NoError(t, tr.Close())
}

func TestThreeRanks(t *testing.T) {
	var (
		np    = 3
		lns   = make([]net.Listener, np)
		addrs = make([]string, np)
		errs  = make([]error, np)
		wg    sync.WaitGroup
	)
	for r := range lns {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		lns[r], addrs[r] = ln, ln.Addr().String()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for r := 0; r < np; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			tr, err := New(ctx, r, lns[r], addrs)
			if err != nil {
				errs[r] = err
				return
			}
			defer tr.Close()
			errs[r] = ring(comm.NewWorld(tr))
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		assert.NoError(t, err, "rank %d", r)
	}
}

func ring(w *comm.Comm) (err error) {
	var (
		np    = w.Size()
		me    = w.Rank()
		right = (me + 1) % np
		left  = (me + np - 1) % np
		in    = make([]float64, 3)
		self  = make([]float64, 1)
	)
	reqs := []*comm.Request{
		w.Isend([]float64{float64(me), 0.25, -1e300}, right, 4),
		w.Isend([]float64{float64(me)}, me, 5),
	}
	if err = w.Recv(in, left, 4); err != nil {
		return
	}
	if err = w.Recv(self, me, 5); err != nil {
		return
	}
	if err = comm.WaitAll(reqs); err != nil {
		return
	}
	if in[0] != float64(left) || in[1] != 0.25 || in[2] != -1e300 || self[0] != float64(me) {
		return fmt.Errorf("rank %d received %v %v", me, in, self)
	}
	var all []float64
	if all, err = w.Gather([]float64{float64(me * me)}, 0); err != nil {
		return
	}
	if me == 0 && (len(all) != 3 || all[1] != 1 || all[2] != 4) {
		return fmt.Errorf("gather got %v", all)
	}
	return w.Barrier()
}
