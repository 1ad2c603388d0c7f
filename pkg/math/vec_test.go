package math

import (
	"testing"
)

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -2}
	b := Vec3{3, -1, 0}
	if got, want := a.Min(b), (Vec3{1, -1, -2}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{3, 5, 0}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
}

func TestVec3Length(t *testing.T) {
	v := Vec3{2, 3, 6}
	if got := v.Length(); got != 7 {
		t.Errorf("Vec3.Length() = %v, want 7", got)
	}
}

func TestVec3AsMapKey(t *testing.T) {
	seen := map[Vec3]int{}
	seen[Vec3{1, 2, 3}]++
	seen[Vec3{1, 2, 3}]++
	seen[Vec3{1, 2, 3.0000002}]++
	if len(seen) != 2 {
		t.Errorf("expected 2 distinct keys, got %d", len(seen))
	}
}

func TestBox3(t *testing.T) {
	var b Box3
	if !b.Empty() {
		t.Fatal("zero Box3 should be empty")
	}
	if b.Size() != (Vec3{}) {
		t.Errorf("empty box size = %v, want zero", b.Size())
	}

	b.Extend(Vec3{1, 1, 1})
	b.Extend(Vec3{-1, 3, 1})
	if b.Empty() {
		t.Fatal("box should not be empty after Extend")
	}
	if got, want := b.Size(), (Vec3{2, 2, 0}); got != want {
		t.Errorf("Box3.Size() = %v, want %v", got, want)
	}
	if b.Min != (Vec3{-1, 1, 1}) || b.Max != (Vec3{1, 3, 1}) {
		t.Errorf("unexpected bounds %v..%v", b.Min, b.Max)
	}
}
