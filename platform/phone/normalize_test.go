package phone

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain digits", "987654321", "987654321"},
		{"spaces and dashes", "987-654 321", "987654321"},
		{"truncates past nine digits", "98765432109", "987654321"},
		{"empty", "", ""},
		{"letters only", "abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidLocal(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"987654321", true},
		{"98765432", false},
		{"9876543210", false},
		{"98765432a", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidLocal(tt.input); got != tt.want {
			t.Errorf("IsValidLocal(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"local mobile", "987654321", "PE", "+51987654321"},
		{"already E164", "+51987654321", "PE", "+51987654321"},
		{"whitespace trimmed", "  987654321 ", "PE", "+51987654321"},
		{"unparseable returns input", "not-a-number", "PE", "not-a-number"},
		{"empty", "", "PE", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeE164(tt.input, tt.region); got != tt.want {
				t.Errorf("NormalizeE164(%q, %q) = %q, want %q", tt.input, tt.region, got, tt.want)
			}
		})
	}
}
