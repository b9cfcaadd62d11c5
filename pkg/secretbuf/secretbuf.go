package secretbuf

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrResourceUnavailable is returned by Acquire when the requested
// buffer cannot be allocated.
var ErrResourceUnavailable = errors.New("secretbuf: resource unavailable")

// ErrDestroyed is returned by Expose once a Buffer has been destroyed.
var ErrDestroyed = errors.New("secretbuf: buffer already destroyed")

// Buffer is a scoped container for secret bytes. No two live Buffers
// may alias the same backing array; Acquire always allocates fresh
// memory.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

// Acquire allocates a buffer of n secret bytes. The returned buffer is
// zero-filled; callers write into it via Expose.
func Acquire(n int) (*Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrResourceUnavailable, n)
	}
	b := &Buffer{data: make([]byte, n)}
	runtime.AddCleanup(b, zeroOnGC, b.data)
	return b, nil
}

// FromBytes wraps an existing slice as a secret buffer, taking
// ownership of it: callers must not retain or reuse src after this
// call. Used when secret bytes arrive from a source secretbuf doesn't
// control, such as a KDF output, so they come under the zeroization
// contract immediately instead of being copied first.
func FromBytes(src []byte) *Buffer {
	b := &Buffer{data: src}
	runtime.AddCleanup(b, zeroOnGC, b.data)
	return b
}

func zeroOnGC(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Expose returns a view of the secret bytes valid only for the
// enclosing scope; callers must not retain the returned slice beyond
// the call that produced it and must not pass it across a Destroy.
func (b *Buffer) Expose() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, ErrDestroyed
	}
	return b.data, nil
}

// Len reports the buffer's length without exposing its bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Destroy overwrites the backing array with zeroes and marks the
// buffer unusable. Destroy is idempotent and safe to call on every
// exit path (defer b.Destroy() immediately after Acquire).
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	b.destroyed = true
}

// IsDestroyed reports whether Destroy has run. Exposed for tests that
// verify zeroization (spec §8's Zeroization property).
func (b *Buffer) IsDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// AllZero reports whether every byte in the (destroyed or not) backing
// array is zero. Test-only helper for the Zeroization property.
func (b *Buffer) AllZero() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.data {
		if c != 0 {
			return false
		}
	}
	return true
}

// With acquires an n-byte buffer, passes it to fn, and guarantees
// Destroy runs afterward regardless of fn's outcome.
func With(n int, fn func(*Buffer) error) (err error) {
	b, err := Acquire(n)
	if err != nil {
		return err
	}
	defer b.Destroy()
	return fn(b)
}
