package cube

import (
	"fmt"
	"math"
)

// CoordSystem is the reference system of horizontal coordinates. The set of
// implementations is closed: GeogCS, RotatedGeogCS, Mercator,
// TransverseMercator, LambertConformal, Stereographic,
// LambertAzimuthalEqualArea and Geostationary.
type CoordSystem interface {
	// Earth returns the ellipsoid the system is defined on.
	Earth() *GeogCS
	String() string
	isCoordSystem()
}

// GeogCS is a geographic (lat/lon) system on an ellipsoid. A sphere has equal
// axes.
type GeogCS struct {
	SemiMajorAxis float64
	SemiMinorAxis float64
}

// Sphere returns a spherical GeogCS.
func Sphere(radius float64) *GeogCS {
	return &GeogCS{SemiMajorAxis: radius, SemiMinorAxis: radius}
}

// Ellipsoid returns an oblate GeogCS.
func Ellipsoid(major, minor float64) *GeogCS {
	return &GeogCS{SemiMajorAxis: major, SemiMinorAxis: minor}
}

// IsSphere reports whether both axes are equal.
func (g *GeogCS) IsSphere() bool {
	return g.SemiMajorAxis == g.SemiMinorAxis
}

// InverseFlattening is a/(a-b), or 0 for a sphere.
func (g *GeogCS) InverseFlattening() float64 {
	if g.IsSphere() {
		return 0
	}
	return g.SemiMajorAxis / (g.SemiMajorAxis - g.SemiMinorAxis)
}

func (g *GeogCS) Earth() *GeogCS { return g }

func (g *GeogCS) String() string {
	if g.IsSphere() {
		return fmt.Sprintf("GeogCS(%v)", g.SemiMajorAxis)
	}
	return fmt.Sprintf("GeogCS(semi_major_axis=%v, semi_minor_axis=%v)", g.SemiMajorAxis, g.SemiMinorAxis)
}

func (*GeogCS) isCoordSystem() {}

// RotatedGeogCS is a lat/lon system whose pole has been moved.
type RotatedGeogCS struct {
	GridNorthPoleLatitude  float64
	GridNorthPoleLongitude float64
	NorthPoleGridLongitude float64
	Ellipsoid              *GeogCS
}

func (r *RotatedGeogCS) Earth() *GeogCS { return r.Ellipsoid }

func (r *RotatedGeogCS) String() string {
	return fmt.Sprintf("RotatedGeogCS(%v, %v, north_pole_grid_longitude=%v, ellipsoid=%v)",
		r.GridNorthPoleLatitude, r.GridNorthPoleLongitude, r.NorthPoleGridLongitude, r.Ellipsoid)
}

func (*RotatedGeogCS) isCoordSystem() {}

// Mercator is a normal-aspect Mercator projection.
type Mercator struct {
	LongitudeOfProjectionOrigin float64
	StandardParallel            float64
	FalseEasting                float64
	FalseNorthing               float64
	Ellipsoid                   *GeogCS
}

func (m *Mercator) Earth() *GeogCS { return m.Ellipsoid }

func (m *Mercator) String() string {
	return fmt.Sprintf("Mercator(longitude_of_projection_origin=%v, standard_parallel=%v, ellipsoid=%v)",
		m.LongitudeOfProjectionOrigin, m.StandardParallel, m.Ellipsoid)
}

func (*Mercator) isCoordSystem() {}

// TransverseMercator is a transverse Mercator projection.
type TransverseMercator struct {
	LatitudeOfProjectionOrigin   float64
	LongitudeOfCentralMeridian   float64
	FalseEasting                 float64
	FalseNorthing                float64
	ScaleFactorAtCentralMeridian float64
	Ellipsoid                    *GeogCS
}

func (m *TransverseMercator) Earth() *GeogCS { return m.Ellipsoid }

func (m *TransverseMercator) String() string {
	return fmt.Sprintf("TransverseMercator(origin=(%v, %v), false=(%v, %v), scale=%v, ellipsoid=%v)",
		m.LatitudeOfProjectionOrigin, m.LongitudeOfCentralMeridian, m.FalseEasting, m.FalseNorthing,
		m.ScaleFactorAtCentralMeridian, m.Ellipsoid)
}

func (*TransverseMercator) isCoordSystem() {}

// LambertConformal is a Lambert conformal conic projection with one or two
// secant latitudes.
type LambertConformal struct {
	CentralLat      float64
	CentralLon      float64
	FalseEasting    float64
	FalseNorthing   float64
	SecantLatitudes []float64
	Ellipsoid       *GeogCS
}

func (l *LambertConformal) Earth() *GeogCS { return l.Ellipsoid }

func (l *LambertConformal) String() string {
	return fmt.Sprintf("LambertConformal(central=(%v, %v), false=(%v, %v), secant_latitudes=%v, ellipsoid=%v)",
		l.CentralLat, l.CentralLon, l.FalseEasting, l.FalseNorthing, l.SecantLatitudes, l.Ellipsoid)
}

func (*LambertConformal) isCoordSystem() {}

// Stereographic is a stereographic projection. Polar grids have a central
// latitude of plus or minus 90.
type Stereographic struct {
	CentralLat    float64
	CentralLon    float64
	FalseEasting  float64
	FalseNorthing float64
	// TrueScaleLat is NaN when unset.
	TrueScaleLat float64
	Ellipsoid    *GeogCS
}

func (s *Stereographic) Earth() *GeogCS { return s.Ellipsoid }

func (s *Stereographic) String() string {
	return fmt.Sprintf("Stereographic(central=(%v, %v), false=(%v, %v), true_scale_lat=%v, ellipsoid=%v)",
		s.CentralLat, s.CentralLon, s.FalseEasting, s.FalseNorthing, s.TrueScaleLat, s.Ellipsoid)
}

func (*Stereographic) isCoordSystem() {}

// LambertAzimuthalEqualArea is a Lambert azimuthal equal-area projection.
type LambertAzimuthalEqualArea struct {
	LatitudeOfProjectionOrigin  float64
	LongitudeOfProjectionOrigin float64
	FalseEasting                float64
	FalseNorthing               float64
	Ellipsoid                   *GeogCS
}

func (l *LambertAzimuthalEqualArea) Earth() *GeogCS { return l.Ellipsoid }

func (l *LambertAzimuthalEqualArea) String() string {
	return fmt.Sprintf("LambertAzimuthalEqualArea(origin=(%v, %v), false=(%v, %v), ellipsoid=%v)",
		l.LatitudeOfProjectionOrigin, l.LongitudeOfProjectionOrigin, l.FalseEasting, l.FalseNorthing, l.Ellipsoid)
}

func (*LambertAzimuthalEqualArea) isCoordSystem() {}

// Geostationary is the view from a satellite above the equator. Coordinates
// are scanning angles in radians.
type Geostationary struct {
	LatitudeOfProjectionOrigin  float64
	LongitudeOfProjectionOrigin float64
	PerspectivePointHeight      float64
	FalseEasting                float64
	FalseNorthing               float64
	SweepAngleAxis              string
	Ellipsoid                   *GeogCS
}

func (g *Geostationary) Earth() *GeogCS { return g.Ellipsoid }

func (g *Geostationary) String() string {
	return fmt.Sprintf("Geostationary(origin=(%v, %v), height=%v, sweep=%s, ellipsoid=%v)",
		g.LatitudeOfProjectionOrigin, g.LongitudeOfProjectionOrigin, g.PerspectivePointHeight,
		g.SweepAngleAxis, g.Ellipsoid)
}

func (*Geostationary) isCoordSystem() {}

// SameSystem reports whether a and b describe the same reference system.
func SameSystem(a, b CoordSystem) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if s, ok := a.(*Stereographic); ok {
		if t, ok := b.(*Stereographic); ok {
			// NaN true-scale latitudes compare equal.
			sa, sb := *s, *t
			if math.IsNaN(sa.TrueScaleLat) && math.IsNaN(sb.TrueScaleLat) {
				sa.TrueScaleLat, sb.TrueScaleLat = 0, 0
			}
			return sa.String() == sb.String()
		}
	}
	return a.String() == b.String()
}
