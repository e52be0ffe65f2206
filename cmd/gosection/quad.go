package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gosection/internal/loader"
	"github.com/philipparndt/gosection/internal/logging"
	"github.com/philipparndt/gosection/pkg/analysis"
	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

var (
	quadPlane        []float64
	quadBox          []float64
	quadFaceAt       []float64
	quadModel        string
	quadIntersection bool
	quadOutput       string
)

var quadCmd = &cobra.Command{
	Use:   "quad",
	Short: "Generate the reference quad of a cutting plane",
	Long: `Generate the reference quad of a cutting plane for a bounding box.

The box comes from --box or from the bounds of --model. With --face-at the
quad is centered on a picked face position instead of the plane origin.
--intersection prints the polygon where the plane cuts the box.`,
	Example: `  gosection quad --plane 0,0,1,-5 --box 0,0,0,10,10,10
  gosection quad --plane 0,0,1,-10 --model part.stl --face-at 5,5,10 -o quad.stl`,
	Args: cobra.NoArgs,
	RunE: runQuad,
}

func init() {
	quadCmd.Flags().Float64SliceVar(&quadPlane, "plane", nil, "Plane equation nx,ny,nz,d")
	quadCmd.Flags().Float64SliceVar(&quadBox, "box", nil, "Bounding box minx,miny,minz,maxx,maxy,maxz")
	quadCmd.Flags().Float64SliceVar(&quadFaceAt, "face-at", nil, "Picked face position x,y,z")
	quadCmd.Flags().StringVar(&quadModel, "model", "", "Take the bounding box from an .stl or .scad model")
	quadCmd.Flags().BoolVar(&quadIntersection, "intersection", false, "Print the plane/box intersection polygon")
	quadCmd.Flags().StringVarP(&quadOutput, "output", "o", "", "Write the quad as an ASCII STL file")
	_ = quadCmd.MarkFlagRequired("plane")
	rootCmd.AddCommand(quadCmd)
}

func runQuad(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	plane, err := planeFlag("plane", quadPlane)
	if err != nil {
		return err
	}

	var box geometry.BoundingBox
	switch {
	case quadModel != "":
		res, err := loader.New(configFrom(ctx).OpenSCAD.Binary, logger).Load(ctx, quadModel)
		if err != nil {
			return err
		}
		defer res.Close()
		box = res.Model.BoundingBox()
	case len(quadBox) == 6:
		box = geometry.NewBoundingBoxFromPoints(
			geometry.NewVector3(quadBox[0], quadBox[1], quadBox[2]),
			geometry.NewVector3(quadBox[3], quadBox[4], quadBox[5]),
		)
	default:
		return errors.New("either --box with 6 values or --model is required")
	}

	var quad []geometry.Vector3
	if len(quadFaceAt) > 0 {
		position, err := vectorFlag("face-at", quadFaceAt)
		if err != nil {
			return err
		}
		quad = geometry.GenerateFaceQuad(plane, position, box)
	} else {
		quad = geometry.PlaceQuad(plane, geometry.GenerateQuad(plane, box))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plane: normal %s d %.6f\n", analysis.FormatVector(plane.Normal), plane.D)
	fmt.Fprintf(out, "Box: %s - %s\n", analysis.FormatVector(box.Min), analysis.FormatVector(box.Max))
	fmt.Fprintf(out, "Center: %s\n\n", analysis.FormatVector(geometry.PlaneBoxCenter(plane, box)))
	printPoints(out, "Quad", quad)

	if quadIntersection {
		fmt.Fprintln(out)
		printPoints(out, "Intersection", geometry.PlaneBoxIntersection(plane, box))
	}

	if quadOutput != "" {
		if err := stl.WriteFile(quadOutput, stl.FromPolygon("quad", quad)); err != nil {
			return err
		}
		logger.Info("quad written", "file", quadOutput)
	}
	return nil
}

func printPoints(w io.Writer, title string, points []geometry.Vector3) {
	if len(points) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for i, p := range points {
		fmt.Fprintf(w, "  %d: %s\n", i, analysis.FormatVector(p))
	}
}
