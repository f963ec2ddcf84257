// Package geo turns host world positions into simplefeatures geometries.
//
// Positions are stored in host world metres. Lengths are horizontal (XY) so
// climbing a grade does not count as extra distance.
package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/RogersSierra/extension/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// DefaultMinSpacing is the minimum horizontal gap between two trace points.
const DefaultMinSpacing = 0.5

// PointFromVector converts a world position into an XYZ point. Positions
// that fail validation (non-finite XY) yield an empty XYZ point.
func PointFromVector(v core.Vector3) geom.Point {
	p, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Z:    v.Z,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ)
	}
	return p
}

// PointFromString parses "x,y,z" into an XYZ point.
func PointFromString(coords string) (geom.Point, error) {
	v, err := core.ParseVector3(coords)
	if err != nil || !v.IsFinite() {
		return geom.NewEmptyPoint(geom.DimXYZ), ErrInvalidCoordinates
	}
	return PointFromVector(v), nil
}

// VectorFromPoint is the inverse of PointFromVector. Empty points yield the origin.
func VectorFromPoint(p geom.Point) core.Vector3 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vector3{}
	}
	return core.Vector3{X: c.X, Y: c.Y, Z: c.Z}
}

// Trace accumulates the ground path of one train. Not safe for concurrent use.
type Trace struct {
	minSpacing float64
	coords     []float64 // flat x,y,z triples
	last       core.Vector3
	length     float64
}

// NewTrace creates a trace that drops points closer than minSpacing to the
// previous one. A non-positive spacing keeps every distinct point.
func NewTrace(minSpacing float64) *Trace {
	return &Trace{minSpacing: minSpacing}
}

// Add appends a position. Non-finite positions are ignored. It reports
// whether the point was kept.
func (t *Trace) Add(v core.Vector3) bool {
	if !v.IsFinite() {
		return false
	}
	if n := t.Len(); n > 0 {
		d := math.Hypot(v.X-t.last.X, v.Y-t.last.Y)
		if d == 0 || d < t.minSpacing {
			return false
		}
		t.length += d
	}
	t.coords = append(t.coords, v.X, v.Y, v.Z)
	t.last = v
	return true
}

// Len returns the number of kept points.
func (t *Trace) Len() int {
	return len(t.coords) / 3
}

// Length returns the horizontal distance covered so far.
func (t *Trace) Length() float64 {
	return t.length
}

// LineString returns the trace as an XYZ line string. Traces with fewer than
// two points yield an empty line string.
func (t *Trace) LineString() geom.LineString {
	if t.Len() < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, len(t.coords))
	copy(coords, t.coords)
	ls, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXYZ))
	if err != nil {
		return geom.LineString{}
	}
	return ls
}

// WKT returns the trace in well-known text.
func (t *Trace) WKT() string {
	return t.LineString().AsText()
}

// Reset forgets every point.
func (t *Trace) Reset() {
	t.coords = t.coords[:0]
	t.last = core.Vector3{}
	t.length = 0
}
