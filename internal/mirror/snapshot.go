package mirror

import (
	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// State is the lifecycle state of a mirror
type State int

const (
	// StateUninitialized is the state before Init
	StateUninitialized State = iota
	// StateReady is entered on Init and never left
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the mirrored cutting state. A new
// snapshot replaces the previous one on every update; callers must not
// modify the returned sections.
type Snapshot struct {
	State        State
	BoundingBox  geometry.BoundingBox
	Sections     []cutting.CuttingSection
	SelectedFace *cutting.SelectedFace
	// Version increases with every published snapshot
	Version uint64
}

// Section returns the mirrored section at index
func (s *Snapshot) Section(index int) (cutting.CuttingSection, bool) {
	if index < 0 || index >= len(s.Sections) {
		return cutting.CuttingSection{}, false
	}
	return s.Sections[index], true
}

// Plane returns the mirrored plane at the given indices
func (s *Snapshot) Plane(sectionIndex, planeIndex int) (cutting.CuttingPlane, bool) {
	section, ok := s.Section(sectionIndex)
	if !ok || planeIndex < 0 || planeIndex >= len(section.CuttingPlanes) {
		return cutting.CuttingPlane{}, false
	}
	return section.CuttingPlanes[planeIndex], true
}

// PlaneCount returns the number of mirrored planes in a section
func (s *Snapshot) PlaneCount(sectionIndex int) int {
	section, ok := s.Section(sectionIndex)
	if !ok {
		return 0
	}
	return len(section.CuttingPlanes)
}
