package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in, region, want string
	}{
		{"", "PE", ""},
		{"  +1 650-253-0000 ", "PE", "+16502530000"},
		{"(650) 253-0000", "US", "+16502530000"},
		{"not a phone", "PE", "not a phone"},
		{"123", "US", "123"},
	}
	for _, tt := range tests {
		if got := NormalizeE164(tt.in, tt.region); got != tt.want {
			t.Errorf("NormalizeE164(%q, %q) = %q want %q", tt.in, tt.region, got, tt.want)
		}
	}
}
