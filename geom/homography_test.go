package geom

import (
	"errors"
	"math"
	"testing"
)

func TestQuadBoxAndAspect(t *testing.T) {
	q := Quad{{10, 20}, {210, 25}, {205, 70}, {12.5, 68}}
	b := q.Box()
	if b.X != 10 || b.Y != 20 || b.W != 200 || b.H != 50 {
		t.Fatalf("unexpected box: %+v", b)
	}
	if got := q.AspectRatio(); math.Abs(got-4) > 1e-9 {
		t.Fatalf("aspect ratio mismatch: got=%g want=4", got)
	}
}

func TestQuadDegenerate(t *testing.T) {
	if RectQuad(0, 0, 10, 10).Degenerate() {
		t.Fatalf("square must not be degenerate")
	}
	line := Quad{{0, 0}, {10, 0}, {20, 0}, {30, 0}}
	if !line.Degenerate() {
		t.Fatalf("collinear quad must be degenerate")
	}
}

func TestSolveHomographyMapsCorners(t *testing.T) {
	src := RectQuad(0, 0, 100, 50)
	dst := Quad{{30, 40}, {150, 20}, {160, 90}, {25, 110}}
	m, err := SolveHomography(src, dst)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	for i := range src {
		if e := ReprojectionError(m, src[i], dst[i]); e > 1e-6 {
			t.Fatalf("corner %d reprojection error too large: %g", i, e)
		}
	}
}

func TestSolveHomographyRejectsCollinear(t *testing.T) {
	src := RectQuad(0, 0, 100, 50)
	dst := Quad{{0, 0}, {10, 10}, {20, 20}, {30, 30}}
	if _, err := SolveHomography(src, dst); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	src := RectQuad(0, 0, 64, 64)
	dst := Quad{{5, 5}, {80, 12}, {70, 90}, {2, 70}}
	m, err := SolveHomography(src, dst)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse failed: %v", err)
	}
	p := Point{X: 17, Y: 41}
	q, ok := m.Apply(p)
	if !ok {
		t.Fatalf("apply failed")
	}
	back, ok := inv.Apply(q)
	if !ok {
		t.Fatalf("inverse apply failed")
	}
	if d := back.Dist(p); d > 1e-6 {
		t.Fatalf("round trip drift %g", d)
	}
}

func TestFindHomographyToleratesOutlier(t *testing.T) {
	truth, err := SolveHomography(RectQuad(0, 0, 100, 100), Quad{{10, 10}, {120, 0}, {130, 110}, {0, 120}})
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	var src, dst []Point
	for _, p := range []Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {50, 50}, {25, 75}, {75, 25}} {
		q, _ := truth.Apply(p)
		src = append(src, p)
		dst = append(dst, q)
	}
	src = append(src, Point{X: 60, Y: 60})
	dst = append(dst, Point{X: 500, Y: -300})

	m, err := FindHomography(src, dst, 5.0)
	if err != nil {
		t.Fatalf("robust estimation failed: %v", err)
	}
	for i := 0; i < len(src)-1; i++ {
		if e := ReprojectionError(m, src[i], dst[i]); e > 1e-3 {
			t.Fatalf("inlier %d error too large: %g", i, e)
		}
	}
}

func TestFindHomographyIsDeterministic(t *testing.T) {
	src := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}}
	dst := []Point{{1, 1}, {12, 0}, {11, 12}, {0, 11}, {6, 6.2}}
	a, errA := FindHomography(src, dst, 5.0)
	b, errB := FindHomography(src, dst, 5.0)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	if a != b {
		t.Fatalf("two runs differ: %v vs %v", a, b)
	}
}

func TestInverseRejectsSingular(t *testing.T) {
	singular := Matrix{1, 2, 3, 2, 4, 6, 0, 0, 1}
	if _, err := singular.Inverse(); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate for singular matrix, got %v", err)
	}
	inv, err := Identity().Inverse()
	if err != nil || inv != Identity() {
		t.Fatalf("identity should invert to itself: %v %v", inv, err)
	}
}

func TestMulComposesTransforms(t *testing.T) {
	shift := Matrix{1, 0, 5, 0, 1, -3, 0, 0, 1}
	scale := Matrix{2, 0, 0, 0, 2, 0, 0, 0, 1}
	p, ok := shift.Mul(scale).Apply(Point{X: 1, Y: 1})
	if !ok || p != (Point{X: 7, Y: -1}) {
		t.Fatalf("scale then shift should give (7,-1), got %+v", p)
	}
}
