package matching_test

import (
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/matching"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips punctuation and suffix",
			input: "Foley Bridge Solutions, PLLC",
			want:  "FOLEY BRIDGE SOLUTIO",
		},
		{
			name:  "vendor truncated suffix still strips",
			input: "FOLEY BRIDGE SOLUTIONS PLL",
			want:  "FOLEY BRIDGE SOLUTIO",
		},
		{
			name:  "simple name untouched",
			input: "John Smith",
			want:  "JOHN SMITH",
		},
		{
			name:  "ampersand and periods stripped",
			input: "Smith & Jones, P.A.",
			want:  "SMITH JONES",
		},
		{
			name:  "medical suffix stripped",
			input: "Sarah Connor MD",
			want:  "SARAH CONNOR",
		},
		{
			name:  "suffix-only name is not emptied",
			input: "LLC",
			want:  "LLC",
		},
		{
			name:  "collapses internal whitespace",
			input: "  Acme   Dental   Corp ",
			want:  "ACME DENTAL",
		},
		{
			name:  "truncates to vendor field width",
			input: "Northwestern Orthopedic Rehabilitation Center",
			want:  "NORTHWESTERN ORTHOPE",
		},
		{
			name:  "only one trailing suffix removed",
			input: "Davis DBA LLC",
			want:  "DAVIS DBA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matching.NormalizeName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeNameVendorPairs(t *testing.T) {
	// The portal-side name and the vendor's truncated rendering of the
	// same payee must normalize equal.
	pairs := [][2]string{
		{"Foley Bridge Solutions, PLLC", "FOLEY BRIDGE SOLUTIONS PLL"},
		{"Smith & Jones Dental, P.A.", "SMITH JONES DENTAL PA"},
		{"Riverside Dental Associates", "RIVERSIDE DENTAL ASSOC"},
	}

	for _, pair := range pairs {
		local := matching.NormalizeName(pair[0])
		vendor := matching.NormalizeName(pair[1])
		if local != vendor {
			t.Errorf("NormalizeName(%q) = %q, NormalizeName(%q) = %q, want equal",
				pair[0], local, pair[1], vendor)
		}
	}
}

func TestNormalizeNameUnrelatedNamesDiffer(t *testing.T) {
	a := matching.NormalizeName("Foley Bridge Solutions PLLC")
	b := matching.NormalizeName("Riverside Family Practice LLC")
	if a == b {
		t.Errorf("unrelated names normalized equal: %q", a)
	}
}

func TestNamePrefix(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		length int
		want   string
	}{
		{
			name:   "default length",
			input:  "Foley Bridge Solutions PLLC",
			length: 12,
			want:   "FOLEY BRIDGE",
		},
		{
			name:   "shorter than requested",
			input:  "Jo Li",
			length: 12,
			want:   "JO LI",
		},
		{
			name:   "punctuation stripped before slicing",
			input:  "F.O.L.E.Y. Bridge Solutions",
			length: 12,
			want:   "FOLEY BRIDGE",
		},
		{
			name:   "no suffix stripping in prefixes",
			input:  "Acme LLC",
			length: 12,
			want:   "ACME LLC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matching.NamePrefix(tt.input, tt.length)
			if got != tt.want {
				t.Errorf("NamePrefix(%q, %d) = %q, want %q", tt.input, tt.length, got, tt.want)
			}
		})
	}
}
