// Package wsnet runs one rank per process, each rank connected to every
// other by a websocket. Rank r dials the ranks below it and accepts the
// ranks above it, so each pair shares exactly one connection.
package wsnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notargets/golbm/comm"
	"github.com/notargets/golbm/utils"
)

const (
	path        = "/golbm"
	headerBytes = 24
	dialBackoff = 50 * time.Millisecond
)

// helloTimeout bounds the wait for a connecting rank to name itself
var helloTimeout = 10 * time.Second

var (
	ErrBadFrame = errors.New("malformed frame")

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1 << 16,
		WriteBufferSize: 1 << 16,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

type peer struct {
	mu   sync.Mutex // Serialises writers, gorilla allows one concurrent writer
	conn *websocket.Conn
}

type Transport struct {
	rank    int
	np      int
	mb      *utils.MailBox[[]float64]
	peers   []*peer
	srv     *http.Server
	closing atomic.Bool
	wg      sync.WaitGroup
}

type hello struct {
	rank int
	conn *websocket.Conn
}

// New connects rank to every address in peers, peers[rank] being the
// address ln listens on. It returns once all connections are up or ctx
// expires.
func New(ctx context.Context, rank int, ln net.Listener, peers []string) (t *Transport, err error) {
	var (
		np       = len(peers)
		accepted = make(chan hello, np)
	)
	if rank < 0 || rank >= np {
		return nil, fmt.Errorf("rank %d outside of %d peers", rank, np)
	}
	t = &Transport{
		rank:  rank,
		np:    np,
		mb:    utils.NewMailBox[[]float64](np),
		peers: make([]*peer, np),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("rank %d: upgrade failed: %v", rank, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(helloTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil || len(msg) != 8 {
			log.Printf("rank %d: bad hello from %s", rank, r.RemoteAddr)
			conn.Close()
			return
		}
		conn.SetReadDeadline(time.Time{})
		accepted <- hello{rank: int(binary.LittleEndian.Uint64(msg)), conn: conn}
	})
	t.srv = &http.Server{Handler: mux}
	go t.srv.Serve(ln)

	for r := 0; r < rank; r++ {
		var conn *websocket.Conn
		if conn, err = dial(ctx, peers[r]); err != nil {
			t.Close()
			return nil, fmt.Errorf("rank %d dialing rank %d at %s: %w", rank, r, peers[r], err)
		}
		var msg [8]byte
		binary.LittleEndian.PutUint64(msg[:], uint64(rank))
		if err = conn.WriteMessage(websocket.BinaryMessage, msg[:]); err != nil {
			conn.Close()
			t.Close()
			return nil, err
		}
		t.peers[r] = &peer{conn: conn}
	}
	for n := rank + 1; n < np; n++ {
		select {
		case h := <-accepted:
			if h.rank <= rank || h.rank >= np || t.peers[h.rank] != nil {
				h.conn.Close()
				t.Close()
				return nil, fmt.Errorf("rank %d: unexpected hello from rank %d", rank, h.rank)
			}
			t.peers[h.rank] = &peer{conn: h.conn}
		case <-ctx.Done():
			t.Close()
			return nil, fmt.Errorf("rank %d waiting for peers: %w", rank, ctx.Err())
		}
	}
	for r, p := range t.peers {
		if p == nil {
			continue
		}
		t.wg.Add(1)
		go t.read(r, p.conn)
	}
	return
}

func dial(ctx context.Context, addr string) (conn *websocket.Conn, err error) {
	url := "ws://" + addr + path
	for {
		if conn, _, err = websocket.DefaultDialer.DialContext(ctx, url, nil); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%v: %w", err, ctx.Err())
		case <-time.After(dialBackoff):
		}
	}
}

// read posts every frame from src into the local mailbox
func (t *Transport) read(src int, conn *websocket.Conn) {
	defer t.wg.Done()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if t.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			log.Printf("rank %d: lost rank %d: %v", t.rank, src, err)
			t.mb.Close()
			return
		}
		ctxID, tag, data, err := decode(frame)
		if err != nil {
			log.Printf("rank %d: frame from rank %d: %v", t.rank, src, err)
			t.mb.Close()
			return
		}
		if err = t.mb.PostMessage(src, t.rank, ctxID, tag, data); err != nil {
			return
		}
	}
}

func encode(context uint64, tag int, data []float64) (frame []byte) {
	frame = make([]byte, headerBytes+8*len(data))
	binary.LittleEndian.PutUint64(frame[0:], context)
	binary.LittleEndian.PutUint64(frame[8:], uint64(int64(tag)))
	binary.LittleEndian.PutUint64(frame[16:], uint64(len(data)))
	for i, v := range data {
		binary.LittleEndian.PutUint64(frame[headerBytes+8*i:], math.Float64bits(v))
	}
	return
}

func decode(frame []byte) (context uint64, tag int, data []float64, err error) {
	if len(frame) < headerBytes {
		err = fmt.Errorf("%w: %d byte header", ErrBadFrame, len(frame))
		return
	}
	context = binary.LittleEndian.Uint64(frame[0:])
	tag = int(int64(binary.LittleEndian.Uint64(frame[8:])))
	n := binary.LittleEndian.Uint64(frame[16:])
	body := uint64(len(frame) - headerBytes)
	if body%8 != 0 || n != body/8 {
		err = fmt.Errorf("%w: %d values in %d bytes", ErrBadFrame, n, len(frame)-headerBytes)
		return
	}
	data = make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(frame[headerBytes+8*i:]))
	}
	return
}

func (t *Transport) Rank() int { return t.rank }

func (t *Transport) Size() int { return t.np }

func (t *Transport) Send(dst int, context uint64, tag int, data []float64) (err error) {
	if dst < 0 || dst >= t.np {
		return fmt.Errorf("%w: %d", comm.ErrBadRank, dst)
	}
	if dst == t.rank {
		msg := make([]float64, len(data))
		copy(msg, data)
		return t.mb.PostMessage(t.rank, t.rank, context, tag, msg)
	}
	p := t.peers[dst]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.BinaryMessage, encode(context, tag, data))
}

func (t *Transport) Recv(src int, context uint64, tag int) (msg []float64, err error) {
	if msg, err = t.mb.ReceiveMessage(t.rank, src, context, tag); errors.Is(err, utils.ErrMailBoxClosed) {
		err = fmt.Errorf("rank %d waiting on rank %d tag %d: %w", t.rank, src, tag, comm.ErrAborted)
	}
	return
}

// Abort drops every connection without a normal close, peers see the loss
// and abort in turn
func (t *Transport) Abort() {
	if t.closing.Swap(true) {
		return
	}
	for _, p := range t.peers {
		if p != nil {
			p.conn.Close()
		}
	}
	t.mb.Close()
	t.srv.Close()
}

func (t *Transport) Close() (err error) {
	if t.closing.Swap(true) {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	for _, p := range t.peers {
		if p == nil {
			continue
		}
		p.mu.Lock()
		p.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		p.mu.Unlock()
		if e := p.conn.Close(); e != nil && err == nil {
			err = e
		}
	}
	t.wg.Wait()
	t.mb.Close()
	if e := t.srv.Close(); e != nil && err == nil {
		err = e
	}
	return
}
