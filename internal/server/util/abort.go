package util

import (
	"context"
	"sync"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AbortRegistry maps a caller key to the cancel function of that caller's
// current chat stream, so DELETE /chat/abort can cancel exactly one
// stream and never anyone else's.
type AbortRegistry struct {
	mu      sync.Mutex
	streams map[string]registeredStream
}

type registeredStream struct {
	id     string
	cancel context.CancelFunc
}

// NewAbortRegistry returns an empty registry.
func NewAbortRegistry() *AbortRegistry {
	return &AbortRegistry{
		streams: make(map[string]registeredStream),
	}
}

// Register records cancel as the caller's current stream, replacing any
// previous registration under the same key. The returned release function
// removes the entry unless a newer stream has replaced it.
func (r *AbortRegistry) Register(key string, cancel context.CancelFunc) func() {
	id, err := gonanoid.New()
	if err != nil {
		// Exhausting the entropy source is not survivable.
		panic(err)
	}

	r.mu.Lock()
	r.streams[key] = registeredStream{id: id, cancel: cancel}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.streams[key]; ok && current.id == id {
			delete(r.streams, key)
		}
	}
}

// Abort cancels the caller's current stream, if any. It reports whether a
// stream was found.
func (r *AbortRegistry) Abort(key string) bool {
	r.mu.Lock()
	stream, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()

	if ok {
		stream.cancel()
	}
	return ok
}

// AbortKey identifies the caller's stream: the X-Request-ID header when
// the client sends one, otherwise the client address.
func AbortKey(c echo.Context) string {
	if id := c.Request().Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return c.RealIP()
}
