package utils

import (
	"errors"
	"fmt"
	"sync"
)

var ErrMailBoxClosed = errors.New("mailbox closed")

type mailKey struct {
	source  int
	context uint64
	tag     int
}

// MailBox delivers messages between NP threads. Messages from one source
// with the same context and tag arrive in the order they were posted, while
// messages with different keys can be received in any order.
type MailBox[T any] struct {
	NP     int
	mu     []sync.Mutex
	cond   []*sync.Cond
	queues []map[mailKey][]T // One for each thread, holds undelivered messages
	closed bool
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:     NP,
		mu:     make([]sync.Mutex, NP),
		cond:   make([]*sync.Cond, NP),
		queues: make([]map[mailKey][]T, NP),
	}
	for n := 0; n < NP; n++ {
		mb.cond[n] = sync.NewCond(&mb.mu[n])
		mb.queues[n] = make(map[mailKey][]T)
	}
	return mb
}

// PostMessage never blocks, the message is queued at the target
func (mb *MailBox[T]) PostMessage(myThread, targetThread int, context uint64, tag int,
	msg T) (err error) {
	if targetThread < 0 || targetThread > mb.NP-1 {
		panic(fmt.Sprintf("Target thread %d out of bounds", targetThread))
	}
	mb.mu[targetThread].Lock()
	defer mb.mu[targetThread].Unlock()
	if mb.closed {
		return ErrMailBoxClosed
	}
	key := mailKey{myThread, context, tag}
	mb.queues[targetThread][key] = append(mb.queues[targetThread][key], msg)
	mb.cond[targetThread].Broadcast()
	return
}

// ReceiveMessage blocks until a message from sourceThread with the given
// context and tag has been posted to myThread
func (mb *MailBox[T]) ReceiveMessage(myThread, sourceThread int, context uint64,
	tag int) (msg T, err error) {
	var (
		key = mailKey{sourceThread, context, tag}
	)
	mb.mu[myThread].Lock()
	defer mb.mu[myThread].Unlock()
	for len(mb.queues[myThread][key]) == 0 {
		if mb.closed {
			err = ErrMailBoxClosed
			return
		}
		mb.cond[myThread].Wait()
	}
	q := mb.queues[myThread][key]
	msg = q[0]
	if len(q) == 1 {
		delete(mb.queues[myThread], key)
	} else {
		mb.queues[myThread][key] = q[1:]
	}
	return
}

// Pending returns the number of undelivered messages queued for myThread
func (mb *MailBox[T]) Pending(myThread int) (n int) {
	mb.mu[myThread].Lock()
	defer mb.mu[myThread].Unlock()
	for _, q := range mb.queues[myThread] {
		n += len(q)
	}
	return
}

// Close wakes every blocked receiver with ErrMailBoxClosed
func (mb *MailBox[T]) Close() {
	for n := 0; n < mb.NP; n++ {
		mb.mu[n].Lock()
	}
	mb.closed = true
	for n := 0; n < mb.NP; n++ {
		mb.cond[n].Broadcast()
		mb.mu[n].Unlock()
	}
}

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucket(kDim int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(kDim)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(kDim int) (tryCount, bucketNum, min, max int) {
	if kDim < 0 || kDim >= pm.MaxIndex {
		return 0, -1, 0, 0
	}
	// Initial guess
	bucketNum = int(float64(pm.ParallelDegree*kDim) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= kDim && pm.Partitions[bucketNum][1] > kDim) {
		if pm.Partitions[bucketNum][0] > kDim {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	if bn == -1 {
		kMax = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
