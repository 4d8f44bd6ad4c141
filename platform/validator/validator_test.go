package validator

import "testing"

func TestPlateTag(t *testing.T) {
	val := New()
	type body struct {
		Plate string `validate:"required,plate"`
	}

	tests := []struct {
		plate string
		valid bool
	}{
		{"ABC-123", true},
		{"W3J505", true},
		{"abc-123", false},
		{"AB-123", false},
		{"ABCD-123", false},
		{"", false},
	}
	for _, tt := range tests {
		err := val.Struct(body{Plate: tt.plate})
		if (err == nil) != tt.valid {
			t.Errorf("plate %q: err = %v, want valid = %v", tt.plate, err, tt.valid)
		}
	}
}

func TestDocumentTag(t *testing.T) {
	val := New()
	type body struct {
		Document string `validate:"required,document"`
	}

	tests := []struct {
		document string
		valid    bool
	}{
		{"45678901", true},     // DNI
		{"20601234567", true},  // RUC
		{"CE12345678", true},   // immigration card
		{"1234", false},
		{"456789012", false},
		{"", false},
	}
	for _, tt := range tests {
		err := val.Struct(body{Document: tt.document})
		if (err == nil) != tt.valid {
			t.Errorf("document %q: err = %v, want valid = %v", tt.document, err, tt.valid)
		}
	}
}
