package unlock

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"9760", true},
		{"", false},
		{"976", false},
		{"97600", false},
		{" 9760", false},
		{"9760\n", false},
	}
	for _, tc := range cases {
		if got := Validate(tc.in); got != tc.want {
			t.Fatalf("Validate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
