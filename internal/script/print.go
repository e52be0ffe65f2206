package script

import (
	"fmt"
	"io"
	"strconv"

	"github.com/philipparndt/gosection/internal/mirror"
	"github.com/philipparndt/gosection/pkg/cutting"
)

// Print writes a readable summary of a snapshot
func Print(w io.Writer, snap *mirror.Snapshot) {
	fmt.Fprintf(w, "State: %s (version %d)\n", snap.State, snap.Version)
	if !snap.BoundingBox.IsEmpty() {
		fmt.Fprintf(w, "Bounding box: %s - %s\n", snap.BoundingBox.Min, snap.BoundingBox.Max)
	}
	if snap.SelectedFace != nil {
		fmt.Fprintf(w, "Selected face: %s normal %s\n", snap.SelectedFace.Position, snap.SelectedFace.Normal)
	}

	for i, section := range snap.Sections {
		state := "inactive"
		if section.Active {
			state = "active"
		}
		fmt.Fprintf(w, "Section %d: %s, %d plane(s)", i, state, len(section.CuttingPlanes))
		if section.HideReferenceGeometry {
			fmt.Fprint(w, ", reference geometry hidden")
		}
		fmt.Fprintln(w)

		for j, plane := range section.CuttingPlanes {
			fmt.Fprintf(w, "  Plane %d: normal %s d %.6f", j, plane.Plane.Normal, plane.Plane.D)
			fmt.Fprintf(w, " color %s line %s opacity %s", formatColor(plane.Color), formatColor(plane.LineColor), formatFloat(plane.Opacity))
			if plane.HideReferenceGeometry {
				fmt.Fprint(w, " hidden")
			} else {
				fmt.Fprintf(w, " quad %d point(s)", len(plane.ReferenceGeometry))
			}
			fmt.Fprintln(w)
		}
	}
}

func formatColor(c *cutting.Color) string {
	if c == nil {
		return "-"
	}
	return c.Hex()
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}
