// Package cutting holds the domain model of cutting sections and cutting
// planes, the port through which a 3D engine is driven, and the conversion
// between the engine's representation and the domain types.
//
// Values returned from conversions are snapshots. Mutating them has no
// effect on the engine.
package cutting
