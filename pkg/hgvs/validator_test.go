package hgvs

import (
	"testing"

	"github.com/phetools-curation-server/internal/domain"
)

func TestValidateHGVS(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		hgvs    string
		wantErr bool
	}{
		// Valid small variants
		{"Valid substitution", "c.8242G>T", false},
		{"Valid multi-base substitution", "c.123AG>TC", false},
		{"Valid intronic substitution", "c.76+1G>A", false},
		{"Valid 5' UTR substitution", "c.-12A>G", false},
		{"Valid deletion", "c.123_125del", false},
		{"Valid single base deletion", "c.123del", false},
		{"Valid duplication", "c.123_125dup", false},
		{"Valid insertion", "c.76_77insT", false},
		{"Valid delins", "c.100_102delinsAG", false},

		// Invalid cases
		{"Empty string", "", true},
		{"Missing position", "c.G>T", true},
		{"Lowercase bases", "c.8242g>t", true},
		{"Trailing garbage", "c.8242G>Tx", true},
		{"Insertion without bases", "c.76_77ins", true},
		{"Dangling range", "c.123_del", true},
		{"Protein notation", "p.Gly92Cys", true},
		{"Transcript prefix", "NM_000138.5:c.8242G>T", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHGVS(tt.hgvs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHGVS() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAllele(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name        string
		allele      string
		allowAbsent bool
		wantKind    AlleleKind
		wantErr     bool
	}{
		{"HGVS allele", "c.8242G>T", false, AlleleSmall, false},
		{"Structural deletion", "DEL: exons 5-7", false, AlleleStructural, false},
		{"Structural translocation", "TRANSL: t(1;7)", false, AlleleStructural, false},
		{"Absent second allele", "na", true, AlleleAbsent, false},
		{"Absent first allele", "na", false, AlleleStructural, true},
		{"Unknown structural prefix", "CNV: exon 2", false, AlleleStructural, true},
		{"Structural without colon", "DEL exon 2", false, AlleleStructural, true},
		{"Structural without description", "DUP:", false, AlleleStructural, true},
		{"Malformed HGVS", "c.12XY", false, AlleleSmall, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := validator.ValidateAllele(tt.allele, tt.allowAbsent)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAllele() error = %v, wantErr %v", err, tt.wantErr)
			}
			if kind != tt.wantKind {
				t.Errorf("ValidateAllele() kind = %s, want %s", kind, tt.wantKind)
			}
		})
	}
}

func TestValidateGeneSymbol(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		{"Valid gene symbol", "FBN1", false},
		{"Valid gene symbol with dash", "HLA-A", false},
		{"Lowercase is accepted", "c19orf12", false},
		{"Empty symbol", "", true},
		{"Inner space", "FBN 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateGeneSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeneSymbol() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTranscript(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		transcript string
		wantErr    bool
	}{
		{"Valid NM transcript", "NM_000138.5", false},
		{"Valid Ensembl transcript", "ENST00000316623.10", false},
		{"Empty transcript", "", true},
		{"Missing version", "NM_000138", true},
		{"Non-numeric version", "NM_000138.v2", true},
		{"Unsupported prefix", "XM_123456.2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateTranscript(tt.transcript)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTranscript() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateGeneVariant(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name     string
		data     domain.GeneVariantData
		wantErrs int
	}{
		{
			name: "Valid heterozygous",
			data: domain.GeneVariantData{
				GeneSymbol: "FBN1",
				Transcript: "NM_000138.5",
				Allele1:    "c.8242G>T",
				Allele2:    "na",
			},
			wantErrs: 0,
		},
		{
			name: "Every field wrong",
			data: domain.GeneVariantData{
				GeneSymbol: "FBN 1",
				Transcript: "XM_1.1",
				Allele1:    "na",
				Allele2:    "c.12XY",
			},
			wantErrs: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.ValidateGeneVariant(tt.data)
			if len(errors) != tt.wantErrs {
				t.Errorf("ValidateGeneVariant() got %d errors, want %d", len(errors), tt.wantErrs)
			}
		})
	}
}

func TestParseCoding(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name     string
		allele   string
		expected *CodingComponents
		wantErr  bool
	}{
		{
			name:   "Parse substitution",
			allele: "c.8242G>T",
			expected: &CodingComponents{
				Type:      "substitution",
				Position:  "8242",
				RefAllele: "G",
				AltAllele: "T",
			},
		},
		{
			name:     "Parse deletion range",
			allele:   "c.123_125del",
			expected: &CodingComponents{Type: "deletion", Position: "123_125"},
		},
		{
			name:     "Parse insertion",
			allele:   "c.76_77insTT",
			expected: &CodingComponents{Type: "insertion", Position: "76_77", AltAllele: "TT"},
		},
		{
			name:    "Invalid allele",
			allele:  "invalid-hgvs",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ParseCoding(tt.allele)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCoding() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && result != nil {
				if result.Type != tt.expected.Type ||
					result.Position != tt.expected.Position ||
					result.RefAllele != tt.expected.RefAllele ||
					result.AltAllele != tt.expected.AltAllele {
					t.Errorf("ParseCoding() = %+v, want %+v", result, tt.expected)
				}
			}
		})
	}
}

func TestStructuralVariantFor(t *testing.T) {
	g := domain.GeneVariantData{HGNCID: "HGNC:3603", GeneSymbol: "FBN1", Transcript: "NM_000138.5"}

	sv, err := StructuralVariantFor("DEL: exons 5-7", g, "15")
	if err != nil {
		t.Fatalf("StructuralVariantFor() unexpected error: %v", err)
	}
	if sv.SvType != domain.SvDeletion {
		t.Errorf("SvType = %s, want DEL", sv.SvType)
	}
	if sv.Label != "exons 5-7" {
		t.Errorf("Label = %q, want %q", sv.Label, "exons 5-7")
	}
	if sv.VariantKey != "DEL: exons 5-7_FBN1_NM_000138.5" {
		t.Errorf("VariantKey = %q", sv.VariantKey)
	}

	if _, err := StructuralVariantFor("DEL: exons 5-7", domain.GeneVariantData{GeneSymbol: "FBN1"}, "15"); err == nil {
		t.Error("StructuralVariantFor() expected error without HGNC id")
	}
}
