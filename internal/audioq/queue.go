package audioq

import (
	"container/list"
	"sync"
)

// Stats is a snapshot of queue occupancy, in the shape producers expect for
// throttling their delivery rate.
type Stats struct {
	Frames  int // frames currently buffered
	Bytes   int // PCM payload of the buffered frames
	Chunks  int
	Stutter int // underruns reported to the producer; always 0
	Dropped int // pushes rejected for backpressure since creation
}

// Queue is a FIFO of chunks with a running count of buffered frames.
//
// The mutex guards only the list and the counters, never chunk payloads.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	chunks  list.List
	frames  int
	bytes   int
	dropped int
	closed  bool
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends c unless one source-second of audio (c.SampleRate frames) is
// already buffered, in which case the chunk is dropped and 0 is returned so
// the producer backs off. Push never blocks beyond the short critical
// section; it runs on the producer's real-time goroutine.
func (q *Queue) Push(c *Chunk) int {
	if c == nil || c.Frames == 0 {
		return 0
	}

	q.mu.Lock()
	if q.closed || q.frames >= c.SampleRate {
		q.dropped++
		q.mu.Unlock()
		return 0
	}
	q.chunks.PushBack(c)
	q.frames += c.Frames
	q.bytes += c.size()
	q.cond.Signal()
	q.mu.Unlock()

	return c.Frames
}

// Pop removes and returns the oldest chunk, blocking until one is available.
// It returns false once the queue is closed.
func (q *Queue) Pop() (*Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.chunks.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}

	c := q.chunks.Remove(q.chunks.Front()).(*Chunk) //nolint:forcetypeassert // only *Chunk is stored
	q.frames -= c.Frames
	q.bytes -= c.size()
	return c, true
}

// Flush discards every queued chunk. Used when playback is interrupted.
func (q *Queue) Flush() {
	q.mu.Lock()
	q.chunks.Init()
	q.frames = 0
	q.bytes = 0
	q.mu.Unlock()
}

// BufferedFrames returns the number of frames currently queued.
func (q *Queue) BufferedFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Frames:  q.frames,
		Bytes:   q.bytes,
		Chunks:  q.chunks.Len(),
		Dropped: q.dropped,
	}
}

// Close releases a blocked Pop and rejects further pushes.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.chunks.Init()
	q.frames = 0
	q.bytes = 0
	q.cond.Broadcast()
	q.mu.Unlock()
}
