package newton

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformWithPos(t *testing.T) {
	tr := IdentityTransform(mgl64.Vec3{1, 2, 3})
	if tr.Pos() != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("incorrect position %v", tr.Pos())
	}
	// Rotated basis survives a move.
	tr.SetCol(0, mgl64.Vec3{0, 1, 0})
	tr.SetCol(1, mgl64.Vec3{-1, 0, 0})
	moved := tr.WithPos(mgl64.Vec3{-5, 0, 8})
	if moved.Pos() != (mgl64.Vec3{-5, 0, 8}) {
		t.Fatalf("incorrect position %v", moved.Pos())
	}
	for i := 0; i < 3; i++ {
		if moved.Col(i) != tr.Col(i) {
			t.Fatalf("basis column %d changed: %v", i, moved.Col(i))
		}
	}
	if tr.Pos() != (mgl64.Vec3{1, 2, 3}) {
		t.Fatal("WithPos modified the receiver")
	}
}

func TestIsFinite(t *testing.T) {
	for _, v := range []mgl64.Vec3{
		{math.NaN(), 0, 0},
		{0, math.Inf(1), 0},
		{0, 0, math.Inf(-1)},
	} {
		if isFinite(v) {
			t.Fatalf("%v is not finite", v)
		}
	}
	if !isFinite(mgl64.Vec3{1e300, -1e-300, 0}) {
		t.Fatal("finite vector rejected")
	}
	if !vectorsEqual(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{1 + 1e-9, 2, 3}) || vectorsEqual(Origin, mgl64.Vec3{0, 1, 0}) {
		t.Fatal("incorrect vector comparison")
	}
}
