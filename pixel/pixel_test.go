package pixel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestThinPixelLess(t *testing.T) {
	t.Parallel()
	pixels := []ThinPixel[float32]{
		{0, 0, 1}, {0, 1, 5}, {0, 1, 6}, {1, 0, 2}, {2, 2, 1},
	}
	for i := 0; i < len(pixels)-1; i++ {
		if !pixels[i].Less(pixels[i+1]) {
			t.Errorf("pixel %d not less than pixel %d", i, i+1)
		}
		if pixels[i+1].Less(pixels[i]) {
			t.Errorf("pixel %d less than pixel %d", i+1, i)
		}
	}
}

func TestConvertCount(t *testing.T) {
	t.Parallel()
	if got := ConvertCount[int32](2.5); got != 3 {
		t.Errorf("ConvertCount[int32](2.5) = %d, want 3", got)
	}
	if got := ConvertCount[int32](2.4); got != 2 {
		t.Errorf("ConvertCount[int32](2.4) = %d, want 2", got)
	}
	if got := ConvertCount[float64](2.5); got != 2.5 {
		t.Errorf("ConvertCount[float64](2.5) = %v, want 2.5", got)
	}
}

func TestCast(t *testing.T) {
	t.Parallel()
	src := NewSliceIter([]ThinPixel[float32]{
		{0, 1, 1.6}, {2, 3, 2.2},
	})
	got, err := ReadAll[int64](Cast[int64](src))
	if err != nil {
		t.Fatal(err)
	}
	want := []ThinPixel[int64]{{0, 1, 2}, {2, 3, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Cast: unexpected pixels (-want +got):\n%s", diff)
	}
}
