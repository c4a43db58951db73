package geom

import "math"

// DistanceToSegment returns the distance from p to the segment ab. A
// zero-length segment degrades to the distance from p to a.
func DistanceToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 < 1e-12 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(Point{X: a.X + t*ab.X, Y: a.Y + t*ab.Y})
}

// TransformAbout scales then rotates p around pivot.
func TransformAbout(p, pivot Point, scale, degrees float64) Point {
	rad := Radians(degrees)
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx := (p.X - pivot.X) * scale
	dy := (p.Y - pivot.Y) * scale
	return Point{X: pivot.X + dx*cos - dy*sin, Y: pivot.Y + dx*sin + dy*cos}
}

// InverseTransformAbout undoes TransformAbout. A zero scale is treated as 1.
func InverseTransformAbout(p, pivot Point, scale, degrees float64) Point {
	if scale == 0 {
		scale = 1
	}
	rad := Radians(degrees)
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx := p.X - pivot.X
	dy := p.Y - pivot.Y
	return Point{
		X: pivot.X + (dx*cos+dy*sin)/scale,
		Y: pivot.Y + (-dx*sin+dy*cos)/scale,
	}
}

// RotateAbout rotates p around pivot by degrees.
func RotateAbout(p, pivot Point, degrees float64) Point {
	return TransformAbout(p, pivot, 1, degrees)
}

// AngleDeg returns the angle of the vector center->p in degrees.
func AngleDeg(center, p Point) float64 {
	return Degrees(math.Atan2(p.Y-center.Y, p.X-center.X))
}

// SnapAngle moves to so that the direction from->to is a multiple of step
// degrees, keeping its length.
func SnapAngle(from, to Point, step float64) Point {
	if step <= 0 {
		return to
	}
	length := from.Dist(to)
	if length == 0 {
		return to
	}
	angle := math.Round(AngleDeg(from, to)/step) * step
	rad := Radians(angle)
	return Point{X: from.X + length*math.Cos(rad), Y: from.Y + length*math.Sin(rad)}
}

// SnapDegrees rounds an angle to the nearest multiple of step.
func SnapDegrees(deg, step float64) float64 {
	if step <= 0 {
		return deg
	}
	return math.Round(deg/step) * step
}
