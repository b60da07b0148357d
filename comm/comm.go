// Package comm is the message passing substrate shared by every rank of a
// run. A Transport moves flat float64 payloads between world ranks, a Comm
// scopes point to point and collective operations to a group of ranks.
//
// Sends copy their payload before returning, so a send buffer is free for
// reuse once the send (or the Wait on its Request) has completed. Receives
// block without a timeout: a lost message stalls the run, exactly like the
// MPI jobs this layer stands in for.
package comm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
)

var (
	ErrTruncated  = errors.New("message size does not match the receive buffer")
	ErrBadRank    = errors.New("rank out of range")
	ErrBadTag     = errors.New("user tags must be non-negative")
	ErrNotOnGroup = errors.New("rank is not a member of the parent communicator")
)

const (
	worldContext uint64 = 1

	tagGather = -1 - iota
	tagBcast
)

// Transport moves payloads between world ranks
type Transport interface {
	Rank() int
	Size() int
	// Send may return before the message is received, data can be reused
	// as soon as Send returns
	Send(dst int, context uint64, tag int, data []float64) error
	// Recv blocks until a message with matching source, context and tag arrives
	Recv(src int, context uint64, tag int) ([]float64, error)
	// Abort releases every blocked operation of every rank with an error
	Abort()
	Close() error
}

// Comm is a group of ranks sharing a private message context
type Comm struct {
	t       Transport
	context uint64
	ranks   []int // World rank of each member, in rank order
	rank    int   // Rank of this process within the group
}

func NewWorld(t Transport) (c *Comm) {
	c = &Comm{
		t:       t,
		context: worldContext,
		ranks:   make([]int, t.Size()),
		rank:    t.Rank(),
	}
	for r := range c.ranks {
		c.ranks[r] = r
	}
	return
}

func (c *Comm) Rank() int { return c.rank }

func (c *Comm) Size() int { return len(c.ranks) }

func (c *Comm) WorldRank(r int) int { return c.ranks[r] }

func (c *Comm) Context() uint64 { return c.context }

func (c *Comm) Abort() { c.t.Abort() }

func (c *Comm) checkRank(r int) error {
	if r < 0 || r >= len(c.ranks) {
		return fmt.Errorf("%w: %d of %d", ErrBadRank, r, len(c.ranks))
	}
	return nil
}

func (c *Comm) Send(buf []float64, dst, tag int) (err error) {
	if tag < 0 {
		return ErrBadTag
	}
	return c.send(buf, dst, tag)
}

func (c *Comm) send(buf []float64, dst, tag int) (err error) {
	if err = c.checkRank(dst); err != nil {
		return
	}
	return c.t.Send(c.ranks[dst], c.context, tag, buf)
}

// Recv fills buf with the next message from src carrying tag. The message
// must have exactly len(buf) values.
func (c *Comm) Recv(buf []float64, src, tag int) (err error) {
	if tag < 0 {
		return ErrBadTag
	}
	return c.recv(buf, src, tag)
}

func (c *Comm) recv(buf []float64, src, tag int) (err error) {
	var (
		msg []float64
	)
	if err = c.checkRank(src); err != nil {
		return
	}
	if msg, err = c.t.Recv(c.ranks[src], c.context, tag); err != nil {
		return
	}
	if len(msg) != len(buf) {
		return fmt.Errorf("%w: rank %d tag %d sent %d values, expected %d",
			ErrTruncated, src, tag, len(msg), len(buf))
	}
	copy(buf, msg)
	return
}

// Request tracks a non-blocking operation
type Request struct {
	done chan struct{}
	err  error
}

func newRequest() *Request { return &Request{done: make(chan struct{})} }

func (r *Request) complete(err error) {
	r.err = err
	close(r.done)
}

func (r *Request) Wait() error {
	<-r.done
	return r.err
}

// WaitAll waits on every request and returns the first error
func WaitAll(reqs []*Request) (err error) {
	for _, r := range reqs {
		if r == nil {
			continue
		}
		if e := r.Wait(); e != nil && err == nil {
			err = e
		}
	}
	return
}

func (c *Comm) Isend(buf []float64, dst, tag int) (req *Request) {
	req = newRequest()
	req.complete(c.Send(buf, dst, tag))
	return
}

// Irecv receives into buf in the background, buf must not be touched until
// the request completes
func (c *Comm) Irecv(buf []float64, src, tag int) (req *Request) {
	req = newRequest()
	go func() {
		req.complete(c.Recv(buf, src, tag))
	}()
	return
}

// Gather collects len(send) values from every member at root, ordered by
// rank. Only root receives a non-nil result.
func (c *Comm) Gather(send []float64, root int) (recv []float64, err error) {
	var (
		n = len(send)
	)
	if err = c.checkRank(root); err != nil {
		return
	}
	if c.rank != root {
		err = c.send(send, root, tagGather)
		return
	}
	recv = make([]float64, n*c.Size())
	for r := 0; r < c.Size(); r++ {
		if r == root {
			copy(recv[r*n:(r+1)*n], send)
			continue
		}
		if err = c.recv(recv[r*n:(r+1)*n], r, tagGather); err != nil {
			return nil, err
		}
	}
	return
}

// Bcast copies buf from root into buf on every other member
func (c *Comm) Bcast(buf []float64, root int) (err error) {
	if err = c.checkRank(root); err != nil {
		return
	}
	if c.rank != root {
		return c.recv(buf, root, tagBcast)
	}
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		if err = c.send(buf, r, tagBcast); err != nil {
			return
		}
	}
	return
}

func (c *Comm) Barrier() (err error) {
	if _, err = c.Gather(nil, 0); err != nil {
		return
	}
	return c.Bcast(nil, 0)
}

// Create builds a communicator from members, given as ranks of c. Every
// member of c must call Create with the same members and label. Ranks not
// listed get a nil communicator.
func (c *Comm) Create(members []int, label string) (sub *Comm, err error) {
	var (
		sorted = append([]int(nil), members...)
		h      = fnv.New64a()
		word   [8]byte
	)
	sort.Ints(sorted)
	binary.LittleEndian.PutUint64(word[:], c.context)
	h.Write(word[:])
	h.Write([]byte(label))
	for i, r := range sorted {
		if err = c.checkRank(r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotOnGroup, err)
		}
		if i > 0 && sorted[i-1] == r {
			return nil, fmt.Errorf("duplicate member %d in communicator %q", r, label)
		}
		binary.LittleEndian.PutUint64(word[:], uint64(r))
		h.Write(word[:])
	}
	me := sort.SearchInts(sorted, c.rank)
	if me == len(sorted) || sorted[me] != c.rank {
		return nil, nil
	}
	sub = &Comm{
		t:       c.t,
		context: h.Sum64(),
		ranks:   make([]int, len(sorted)),
		rank:    me,
	}
	for i, r := range sorted {
		sub.ranks[i] = c.ranks[r]
	}
	return
}

// Allgather returns the concatenated contributions of every member on every
// member
func (c *Comm) Allgather(send []float64) (all []float64, err error) {
	if all, err = c.Gather(send, 0); err != nil {
		return
	}
	if c.rank != 0 {
		all = make([]float64, len(send)*c.Size())
	}
	err = c.Bcast(all, 0)
	return
}
