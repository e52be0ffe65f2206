package stl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/philipparndt/gosection/pkg/geometry"
)

// WriteASCII writes the model in ASCII STL format
func WriteASCII(w io.Writer, model *Model) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "solid %s\n", model.Name)
	for _, t := range model.Triangles {
		fmt.Fprintf(bw, "  facet normal %s\n", formatVector(t.Normal))
		fmt.Fprintln(bw, "    outer loop")
		for _, v := range []geometry.Vector3{t.V1, t.V2, t.V3} {
			fmt.Fprintf(bw, "      vertex %s\n", formatVector(v))
		}
		fmt.Fprintln(bw, "    endloop")
		fmt.Fprintln(bw, "  endfacet")
	}
	fmt.Fprintf(bw, "endsolid %s\n", model.Name)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write STL: %w", err)
	}
	return nil
}

// WriteFile writes the model to an ASCII STL file
func WriteFile(filename string, model *Model) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteASCII(file, model); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func formatVector(v geometry.Vector3) string {
	return fmt.Sprintf("%g %g %g", v.X, v.Y, v.Z)
}
