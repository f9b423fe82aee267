// Package audioq is the bounded PCM pipeline between the streaming producer
// and the audio output goroutine.
package audioq

import "fmt"

// Format describes the PCM layout of a chunk.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// Chunk is one delivery of interleaved signed 16-bit PCM frames of uniform
// format. A chunk is owned by exactly one side at a time: the producer until
// Push, the queue until Pop, the consumer afterwards.
type Chunk struct {
	Format
	Samples []int16
	Frames  int
}

// NewChunk copies frames*channels samples into a new chunk.
func NewChunk(format Format, samples []int16, frames int) *Chunk {
	n := frames * format.Channels
	buf := make([]int16, n)
	copy(buf, samples[:n])
	return &Chunk{
		Format:  format,
		Samples: buf,
		Frames:  frames,
	}
}

// size is the PCM payload in bytes.
func (c *Chunk) size() int {
	return len(c.Samples) * 2
}
