package viewer

import (
	"fmt"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// pick is a selection made in the viewer
type pick struct {
	position geometry.Vector3
	normal   geometry.Vector3
	face     bool
}

func (p pick) IsFaceSelection() bool        { return p.face }
func (p pick) Position() geometry.Vector3   { return p.position }
func (p pick) FaceNormal() geometry.Vector3 { return p.normal }

// SelectFace selects a triangle of a loaded model. The picked position is
// the triangle center and the normal is its face normal.
func (v *Viewer) SelectFace(nodeIndex, triangleIndex int) error {
	v.mu.Lock()
	if nodeIndex < 0 || nodeIndex >= len(v.nodes) {
		v.mu.Unlock()
		return fmt.Errorf("no model at index %d", nodeIndex)
	}
	model := v.nodes[nodeIndex].model
	if triangleIndex < 0 || triangleIndex >= len(model.Triangles) {
		v.mu.Unlock()
		return fmt.Errorf("no triangle at index %d in model %q", triangleIndex, model.Name)
	}
	triangle := model.Triangles[triangleIndex]
	v.selection = pick{
		position: triangle.Center(),
		normal:   triangle.FaceNormal(),
		face:     true,
	}
	v.mu.Unlock()

	v.notifySelection()
	return nil
}

// SelectFaceAt selects a face by its picked position and normal
func (v *Viewer) SelectFaceAt(position, normal geometry.Vector3) {
	v.mu.Lock()
	v.selection = pick{position: position, normal: normal.Normalize(), face: true}
	v.mu.Unlock()

	v.notifySelection()
}

// SelectPoint selects a position that is not on a face
func (v *Viewer) SelectPoint(position geometry.Vector3) {
	v.mu.Lock()
	v.selection = pick{position: position}
	v.mu.Unlock()

	v.notifySelection()
}

// ClearSelection removes the current selection
func (v *Viewer) ClearSelection() {
	v.mu.Lock()
	v.selection = nil
	v.mu.Unlock()

	v.notifySelection()
}

func (v *Viewer) notifySelection() {
	v.fire("selectionArray", func(cb *cutting.Callbacks) {
		if cb.SelectionArray != nil {
			cb.SelectionArray()
		}
	})
}
