package render

import "testing"

func TestDPI(t *testing.T) {
	cases := []struct {
		scale float64
		want  float64
	}{
		{1.0, 72},
		{1.5, 108},
		{2.0, 144},
		{0, 108},  // default scale 1.5
		{-1, 108}, // non-positive coerced
	}
	for _, c := range cases {
		if got := DPI(c.scale); got != c.want {
			t.Errorf("DPI(%v) = %v, want %v", c.scale, got, c.want)
		}
	}
}

func TestSurfaceDataURI(t *testing.T) {
	s := &Surface{JPEG: []byte{0xFF, 0xD8, 0xFF}}
	uri := s.DataURI()
	if want := "data:image/jpeg;base64,/9j/"; uri != want {
		t.Errorf("DataURI = %q, want %q", uri, want)
	}
}
