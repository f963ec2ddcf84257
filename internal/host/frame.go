package host

import (
	"sort"
	"sync"

	"github.com/RogersSierra/extension/pkg/core"
)

// PropCommand is the latest transform requested for one prop.
type PropCommand struct {
	Name     string        `json:"name"`
	Bone     string        `json:"bone"`
	Offset   *core.Vector3 `json:"offset,omitempty"`
	Rotation *core.Vector3 `json:"rotation,omitempty"`
	Detached bool          `json:"detached,omitempty"`
	Deleted  bool          `json:"deleted,omitempty"`
}

// Frame collects the commands a train issues during one tick so they can be
// returned to the host in a single reply. It implements Vehicle and PropFactory.
type Frame struct {
	mu     sync.Mutex
	handle string
	speed  float64
	props  map[string]*PropCommand
}

// NewFrame creates a frame for the given host vehicle handle.
func NewFrame(handle string) *Frame {
	return &Frame{handle: handle, props: make(map[string]*PropCommand)}
}

// Handle implements Vehicle.
func (f *Frame) Handle() string {
	return f.handle
}

// SetTrainSpeed implements Vehicle.
func (f *Frame) SetTrainSpeed(speed float64) {
	f.mu.Lock()
	f.speed = speed
	f.mu.Unlock()
}

// Speed returns the last speed pushed by the train.
func (f *Frame) Speed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speed
}

// AttachProp implements PropFactory.
func (f *Frame) AttachProp(name, bone string) (Prop, error) {
	f.mu.Lock()
	f.props[name] = &PropCommand{Name: name, Bone: bone}
	f.mu.Unlock()
	return &frameProp{frame: f, name: name}, nil
}

// Commands returns a snapshot of all prop commands ordered by name.
func (f *Frame) Commands() []PropCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PropCommand, 0, len(f.props))
	for _, c := range f.props {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *Frame) update(name string, fn func(c *PropCommand)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.props[name]; ok {
		fn(c)
	}
}

type frameProp struct {
	frame *Frame
	name  string
}

func (p *frameProp) Name() string { return p.name }

func (p *frameProp) SetOffset(offset core.Vector3) {
	p.frame.update(p.name, func(c *PropCommand) { c.Offset = &offset })
}

func (p *frameProp) SetRotation(rotation core.Vector3) {
	p.frame.update(p.name, func(c *PropCommand) { c.Rotation = &rotation })
}

func (p *frameProp) Detach() {
	p.frame.update(p.name, func(c *PropCommand) { c.Detached = true })
}

func (p *frameProp) Delete() {
	p.frame.update(p.name, func(c *PropCommand) { c.Deleted = true })
}
