package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gosection/internal/loader"
	"github.com/philipparndt/gosection/internal/logging"
	"github.com/philipparndt/gosection/pkg/analysis"
)

var infoCut []float64

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Display general information about a model",
	Long: `Show dimensions, triangle count, surface area and edge statistics of an
STL or OpenSCAD model. With --cut the cross-section of a plane is measured too.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().Float64SliceVar(&infoCut, "cut", nil, "Measure the cross-section of the plane nx,ny,nz,d")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	res, err := loader.New(configFrom(ctx).OpenSCAD.Binary, logging.FromContext(ctx)).Load(ctx, args[0])
	if err != nil {
		return err
	}
	defer res.Close()

	model := res.Model
	result := analysis.Summarize(model)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Model Information")
	fmt.Fprintln(out, "=================")
	if model.Name != "" {
		fmt.Fprintf(out, "Name: %s\n", model.Name)
	}
	fmt.Fprintf(out, "File: %s\n", res.Source)
	if len(res.Watch) > 1 {
		fmt.Fprintf(out, "Dependencies: %d\n", len(res.Watch)-1)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Model Statistics:")
	fmt.Fprintf(out, "  Triangles: %d\n", result.TriangleCount)
	fmt.Fprintf(out, "  Edges: %d\n", result.EdgeCount)
	fmt.Fprintf(out, "  Surface Area: %.6f square units\n\n", result.SurfaceArea)

	fmt.Fprintln(out, "Bounding Box:")
	fmt.Fprintf(out, "  Min: %s\n", analysis.FormatVector(result.BoundingBox.Min))
	fmt.Fprintf(out, "  Max: %s\n", analysis.FormatVector(result.BoundingBox.Max))
	fmt.Fprintf(out, "  Center: %s\n\n", analysis.FormatVector(result.BoundingBox.Center()))

	fmt.Fprintln(out, "Dimensions:")
	fmt.Fprintf(out, "  Width (X): %.6f units\n", result.Dimensions.X)
	fmt.Fprintf(out, "  Depth (Y): %.6f units\n", result.Dimensions.Y)
	fmt.Fprintf(out, "  Height (Z): %.6f units\n", result.Dimensions.Z)
	fmt.Fprintf(out, "  Diagonal: %.6f units\n", result.BoundingBox.Diagonal())
	fmt.Fprintf(out, "  Volume: %.6f cubic units\n\n", result.Volume)

	fmt.Fprintln(out, "Edge Lengths:")
	fmt.Fprintf(out, "  Minimum: %.6f units\n", result.MinEdgeLength)
	fmt.Fprintf(out, "  Maximum: %.6f units\n", result.MaxEdgeLength)
	fmt.Fprintf(out, "  Average: %.6f units\n", result.AvgEdgeLength)

	if len(infoCut) == 0 {
		return nil
	}

	plane, err := planeFlag("cut", infoCut)
	if err != nil {
		return err
	}
	section, err := analysis.Cut(model, plane)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Cross-Section:")
	fmt.Fprintf(out, "  Plane: normal %s d %.6f\n", analysis.FormatVector(plane.Normal), plane.D)
	fmt.Fprintf(out, "  Segments: %d\n", len(section.Segments))
	fmt.Fprintf(out, "  Perimeter: %.6f units\n", section.Perimeter)
	if !section.Bounds.IsEmpty() {
		fmt.Fprintf(out, "  Min: %s\n", analysis.FormatVector(section.Bounds.Min))
		fmt.Fprintf(out, "  Max: %s\n", analysis.FormatVector(section.Bounds.Max))
	}
	fmt.Fprintf(out, "  Triangles above: %d, below: %d, in plane: %d\n", section.Above, section.Below, section.Coplanar)
	return nil
}
