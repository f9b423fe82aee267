// Package output moves audio from the frame queue to a hardware sink.
package output

import "github.com/llehouerou/boombox/internal/audioq"

// Slot identifies one buffer submitted to a sink.
type Slot uint64

// Sink is the hardware side of the pipeline: a small ring of buffers that
// are played in submission order.
type Sink interface {
	// Configure prepares the sink for PCM of the given rate and channel
	// count. The sink must be stopped.
	Configure(rate, channels int) error
	// Submit queues the chunk for playback and returns its slot.
	Submit(c *audioq.Chunk) (Slot, error)
	// SlotFree reports whether the slot has finished playing.
	SlotFree(s Slot) bool
	Start()
	// Stop halts output and discards every submitted slot.
	Stop()
	// Playing is false once output ran dry (underrun) or was stopped.
	Playing() bool
}

// Source is the consumer side of the frame queue.
type Source interface {
	Pop() (*audioq.Chunk, bool)
	Close()
}
