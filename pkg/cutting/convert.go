package cutting

import "github.com/philipparndt/gosection/pkg/geometry"

// ToDomainPlane maps an engine plane to a CuttingPlane
func ToDomainPlane(p EnginePlane) CuttingPlane {
	var geo []geometry.Vector3
	if len(p.ReferenceGeometry) > 0 {
		geo = append([]geometry.Vector3(nil), p.ReferenceGeometry...)
	}
	return CuttingPlane{
		Plane:                 p.Plane,
		ReferenceGeometry:     geo,
		Color:                 copyColor(p.Color),
		LineColor:             copyColor(p.LineColor),
		Opacity:               copyFloat(p.Opacity),
		HideReferenceGeometry: geo == nil,
	}
}

// ToDomainSection maps an engine section. hidden is the section-level flag
// tracked outside the engine.
func ToDomainSection(section Section, hidden bool) CuttingSection {
	enginePlanes := section.CuttingPlanes()
	planes := make([]CuttingPlane, 0, len(enginePlanes))
	for _, p := range enginePlanes {
		planes = append(planes, ToDomainPlane(p))
	}
	return CuttingSection{
		CuttingPlanes:         planes,
		Active:                section.IsActive(),
		HideReferenceGeometry: hidden,
	}
}

// ToDomainSections maps every section of the manager. Sections beyond the
// end of hidden are treated as not hidden.
func ToDomainSections(manager Manager, hidden []bool) []CuttingSection {
	count := manager.CuttingSectionCount()
	sections := make([]CuttingSection, 0, count)
	for i := 0; i < count; i++ {
		flag := false
		if i < len(hidden) {
			flag = hidden[i]
		}
		section := manager.CuttingSection(i)
		if section == nil {
			// keep indices aligned with the engine
			sections = append(sections, CuttingSection{HideReferenceGeometry: flag})
			continue
		}
		sections = append(sections, ToDomainSection(section, flag))
	}
	return sections
}

func copyColor(c *Color) *Color {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}
