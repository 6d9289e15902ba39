package types

import "testing"

func TestVec3Ops(t *testing.T) {
	v := XYZ(1, 2, 3)

	if got := v.Add(XYZ(1, 1, 1)); got != XYZ(2, 3, 4) {
		t.Fatalf("expected Add to return {2 3 4}; got %v", got)
	}
	if got := v.Mul(0.5); got != XYZ(0.5, 1, 1.5) {
		t.Fatalf("expected Mul to return {0.5 1 1.5}; got %v", got)
	}
	if got := v.Map(func(c float32) float32 { return c * c }); got != XYZ(1, 4, 9) {
		t.Fatalf("expected Map to return {1 4 9}; got %v", got)
	}
	if got := v.Vec4(8).Vec3(); got != v {
		t.Fatalf("expected Vec4/Vec3 round trip to return %v; got %v", v, got)
	}
}
