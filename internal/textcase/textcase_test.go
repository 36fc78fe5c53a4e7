package textcase

import "testing"

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"PENDAHULUAN":       "Pendahuluan",
		"  KETENTUAN UMUM ": "Ketentuan Umum",
		"maksud dan tujuan": "Maksud Dan Tujuan",
		"":                  "",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Errorf("Title(%q): expected %q, got %q", in, want, got)
		}
	}
}
