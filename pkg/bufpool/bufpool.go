// Package bufpool recycles the byte slices that hold incoming SMB1 frames.
//
// Every request is read into a fresh body buffer and dropped once its reply
// has been written, so a long-lived connection answering keep-alive ECHOs
// would otherwise allocate one slice per request. Two size classes cover
// the traffic: handshake requests fit in SmallSize, and FrameSize matches
// the default maximum message size. Anything larger is allocated directly.
//
//	buf := bufpool.Get(n)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default size classes.
const (
	// DefaultSmallSize holds any handshake request with room to spare.
	DefaultSmallSize = 1 << 10

	// DefaultFrameSize equals the default smb.max_message_size.
	DefaultFrameSize = 64 << 10
)

// Pool hands out byte slices from two size classes.
type Pool struct {
	small     sync.Pool
	frame     sync.Pool
	smallSize int
	frameSize int
}

// Config sets the pool size classes. Zero values use the defaults.
type Config struct {
	SmallSize int
	FrameSize int
}

// NewPool creates a pool. A nil cfg uses the defaults.
func NewPool(cfg *Config) *Pool {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.SmallSize <= 0 {
		c.SmallSize = DefaultSmallSize
	}
	if c.FrameSize <= 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.FrameSize < c.SmallSize {
		c.FrameSize = c.SmallSize
	}

	p := &Pool{smallSize: c.SmallSize, frameSize: c.FrameSize}
	p.small.New = func() any {
		buf := make([]byte, p.smallSize)
		return &buf
	}
	p.frame.New = func() any {
		buf := make([]byte, p.frameSize)
		return &buf
	}
	return p
}

// Get returns a slice of length size. Its capacity is the size class, or
// exactly size when size exceeds the frame class.
//
// The caller must not use the slice, or anything aliasing it, after Put.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte
	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.frameSize:
		bufPtr = p.frame.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	return (*bufPtr)[:size]
}

// Put returns buf to its size class. Slices that did not come from Get
// are dropped, as are oversized ones.
func (p *Pool) Put(buf []byte) {
	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&full)
	case p.frameSize:
		p.frame.Put(&full)
	}
}

var globalPool = NewPool(nil)

// Get returns a slice of length size from the shared pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns buf to the shared pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
