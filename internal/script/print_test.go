package script

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/gosection/internal/config"
	"github.com/philipparndt/gosection/internal/mirror"
	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

func TestPrint(t *testing.T) {
	red := cutting.NewColor(0xff, 0, 0)
	green := cutting.NewColor(0, 0xff, 0)

	snap := &mirror.Snapshot{
		State:       mirror.StateReady,
		Version:     3,
		BoundingBox: geometry.NewBoundingBoxFromPoints(geometry.NewVector3(0, 0, 0), geometry.NewVector3(10, 10, 10)),
		SelectedFace: &cutting.SelectedFace{
			Position: geometry.NewVector3(5, 5, 10),
			Normal:   geometry.NewVector3(0, 0, 1),
		},
		Sections: []cutting.CuttingSection{
			{
				Active: true,
				CuttingPlanes: []cutting.CuttingPlane{{
					Plane:             geometry.NewPlane(geometry.NewVector3(0, 0, 1), -5),
					ReferenceGeometry: make([]geometry.Vector3, 4),
					Color:             &red,
					Opacity:           cutting.Float64Ptr(0.5),
				}},
			},
			{
				HideReferenceGeometry: true,
				CuttingPlanes: []cutting.CuttingPlane{{
					Plane:                 geometry.NewPlane(geometry.NewVector3(1, 0, 0), -2),
					LineColor:             &green,
					HideReferenceGeometry: true,
				}},
			},
		},
	}

	var buf bytes.Buffer
	Print(&buf, snap)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "print", buf.Bytes())
}

func TestPrintUninitialized(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, &mirror.Snapshot{BoundingBox: geometry.NewBoundingBox()})
	assert.Equal(t, "State: uninitialized (version 0)\n", buf.String())
}

func TestSessionID(t *testing.T) {
	session, err := NewSession(config.Default(), nil)
	require.NoError(t, err)
	defer session.Close()

	parsed, err := uuid.Parse(session.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
