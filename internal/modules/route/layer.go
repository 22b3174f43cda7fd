package route

import "myride/internal/types"

type MarkerKind string

const (
	MarkerPickup MarkerKind = "pickup"
	MarkerDrop   MarkerKind = "drop"
)

type Marker struct {
	Kind  MarkerKind  `json:"kind"`
	Point types.Point `json:"point"`
}

// Canvas is the drawing surface a route is rendered to.
type Canvas interface {
	Clear()
	Draw(pickup, drop types.Point, path []types.Point)
}

// Layer is an in-memory Canvas. It is guarded by the owning session's lock.
type Layer struct {
	markers  []Marker
	polyline []types.Point
}

// LayerSnapshot is a copy of what is currently drawn.
type LayerSnapshot struct {
	Markers  []Marker      `json:"markers"`
	Polyline []types.Point `json:"polyline"`
}

func (l *Layer) Clear() {
	l.markers = nil
	l.polyline = nil
}

func (l *Layer) Draw(pickup, drop types.Point, path []types.Point) {
	l.markers = []Marker{
		{Kind: MarkerPickup, Point: pickup},
		{Kind: MarkerDrop, Point: drop},
	}
	l.polyline = append([]types.Point(nil), path...)
}

func (l *Layer) Snapshot() LayerSnapshot {
	return LayerSnapshot{
		Markers:  append([]Marker(nil), l.markers...),
		Polyline: append([]types.Point(nil), l.polyline...),
	}
}

// Empty reports whether nothing is drawn.
func (l *Layer) Empty() bool {
	return len(l.markers) == 0 && len(l.polyline) == 0
}
