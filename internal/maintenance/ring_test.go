package maintenance

import (
	"reflect"
	"testing"
)

func TestRingEmpty(t *testing.T) {
	r := NewRing(10)

	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
	if r.Last() != 0 {
		t.Errorf("Last: got %d, want 0", r.Last())
	}
	if got := r.Values(); len(got) != 0 {
		t.Errorf("Values: got %v, want empty", got)
	}
	if r.At(0) != 0 {
		t.Errorf("At(0): got %d, want 0", r.At(0))
	}
}

func TestRingPartialFill(t *testing.T) {
	r := NewRing(10)
	for i := int64(1); i <= 4; i++ {
		r.Push(i * 100)
	}

	if r.Len() != 4 {
		t.Errorf("Len: got %d, want 4", r.Len())
	}
	want := []int64{100, 200, 300, 400}
	if got := r.Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("Values: got %v, want %v", got, want)
	}
	if r.Last() != 400 {
		t.Errorf("Last: got %d, want 400", r.Last())
	}
}

func TestRingOverwriteKeepsNewest(t *testing.T) {
	r := NewRing(10)
	for i := int64(1); i <= 12; i++ {
		r.Push(i)
	}

	if r.Len() != 10 {
		t.Fatalf("Len: got %d, want 10", r.Len())
	}
	if r.At(0) != 3 {
		t.Errorf("At(0): got %d, want 3 (third recorded)", r.At(0))
	}
	if r.At(9) != 12 {
		t.Errorf("At(9): got %d, want 12", r.At(9))
	}
	want := []int64{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if got := r.Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("Values: got %v, want %v", got, want)
	}
	if r.Last() != 12 {
		t.Errorf("Last: got %d, want 12", r.Last())
	}
}

func TestRingLogicalToPhysical(t *testing.T) {
	tests := []struct {
		name   string
		pushes int
		want   []int // physical slot for logical 0..Len-1
	}{
		{"partial", 3, []int{0, 1, 2}},
		{"exactly full", 4, []int{0, 1, 2, 3}},
		{"wrapped once", 5, []int{1, 2, 3, 0}},
		{"wrapped three", 7, []int{3, 0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(4)
			for i := 0; i < tt.pushes; i++ {
				r.Push(int64(i))
			}
			for i, want := range tt.want {
				if got := r.LogicalToPhysical(i); got != want {
					t.Errorf("LogicalToPhysical(%d): got %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestRingOutOfRange(t *testing.T) {
	r := NewRing(4)
	r.Push(7)

	if r.At(-1) != 0 {
		t.Errorf("At(-1): got %d, want 0", r.At(-1))
	}
	if r.At(1) != 0 {
		t.Errorf("At(1): got %d, want 0", r.At(1))
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 6; i++ {
		r.Push(int64(i))
	}

	r.Reset()

	if r.Len() != 0 {
		t.Errorf("Len after reset: got %d, want 0", r.Len())
	}
	r.Push(42)
	if r.At(0) != 42 {
		t.Errorf("At(0) after reset: got %d, want 42", r.At(0))
	}
}
