package audio

import (
	"errors"
	"io"
	"sync"
)

// Output plays a pull stream of interleaved signed 16-bit little-endian
// samples. Open starts pulling from src; Close stops.
type Output interface {
	Open(sampleRate, channels int, src io.Reader) error
	Close() error
	IsPlaying() bool
}

// BufferOutput collects samples in memory. Nothing is pulled until Pull
// is called, which makes it usable from tests.
type BufferOutput struct {
	buffer     []int16
	src        io.Reader
	sampleRate int
	channels   int
	eof        bool
	mu         sync.Mutex
}

// NewBufferOutput creates a new buffer output
func NewBufferOutput() *BufferOutput {
	return &BufferOutput{}
}

// Open opens the buffer output
func (b *BufferOutput) Open(sampleRate, channels int, src io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sampleRate = sampleRate
	b.channels = channels
	b.src = src
	b.eof = false
	b.buffer = b.buffer[:0]
	return nil
}

// Close closes the buffer output
func (b *BufferOutput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.src = nil
	return nil
}

// Pull reads up to frames frames from the source and appends them. It
// returns the number of frames read; io.EOF once the source has ended.
func (b *BufferOutput) Pull(frames int) (int, error) {
	b.mu.Lock()
	src, channels := b.src, b.channels
	b.mu.Unlock()

	if src == nil {
		return 0, errors.New("buffer output not open")
	}

	raw := make([]byte, frames*channels*2)
	n, err := io.ReadFull(src, raw)
	n -= n % (channels * 2)

	b.mu.Lock()
	for i := 0; i < n; i += 2 {
		b.buffer = append(b.buffer, int16(uint16(raw[i])|uint16(raw[i+1])<<8))
	}
	if err != nil {
		b.eof = true
	}
	b.mu.Unlock()

	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n / (channels * 2), err
}

// IsPlaying reports whether the source can still deliver samples.
func (b *BufferOutput) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.src != nil && !b.eof
}

// GetBuffer returns the accumulated audio buffer
func (b *BufferOutput) GetBuffer() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]int16, len(b.buffer))
	copy(result, b.buffer)
	return result
}

// Clear clears the buffer
func (b *BufferOutput) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffer = b.buffer[:0]
}
