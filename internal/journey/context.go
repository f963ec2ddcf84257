// Package journey tracks the recording session in progress.
package journey

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RogersSierra/extension/pkg/core"
)

var (
	// ErrActive is returned when starting a journey while one is running.
	ErrActive = errors.New("journey already in progress")
	// ErrNotActive is returned when ending without a journey.
	ErrNotActive = errors.New("no journey in progress")
)

// Context holds the current journey and the defaults stamped on new ones.
type Context struct {
	mu      sync.RWMutex
	current *core.Journey

	version string
	build   string
	tag     string
	now     func() time.Time
}

// NewContext creates an idle context. tag is used when Start gets none.
func NewContext(version, build, tag string) *Context {
	return &Context{version: version, build: build, tag: tag, now: time.Now}
}

// Start opens a journey on world.
func (c *Context) Start(world, tag string) (*core.Journey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return nil, ErrActive
	}
	world = strings.TrimSpace(world)
	if world == "" {
		world = "unknown"
	}
	if tag == "" {
		tag = c.tag
	}
	j := &core.Journey{
		ID:               uuid.NewString(),
		WorldName:        world,
		StartTime:        c.now().UTC(),
		ExtensionVersion: c.version,
		ExtensionBuild:   c.build,
		Tag:              tag,
	}
	c.current = j
	return j, nil
}

// End closes the current journey and returns it.
func (c *Context) End() (*core.Journey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNotActive
	}
	j := c.current
	c.current = nil
	return j, nil
}

// Current returns the journey in progress, or nil.
func (c *Context) Current() *core.Journey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// ID returns the current journey id, or "".
func (c *Context) ID() string {
	if j := c.Current(); j != nil {
		return j.ID
	}
	return ""
}

// Elapsed returns the wall time since the journey started.
func (c *Context) Elapsed() time.Duration {
	j := c.Current()
	if j == nil {
		return 0
	}
	return c.now().Sub(j.StartTime)
}
