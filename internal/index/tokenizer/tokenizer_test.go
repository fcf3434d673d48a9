package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "splits on punctuation and lowercases",
			input: "Quyết định 12/QĐ-UBND",
			want:  []string{"quyết", "định", "12", "qđ", "ubnd"},
		},
		{
			name:  "preserves diacritics",
			input: "Phê duyệt kế hoạch",
			want:  []string{"phê", "duyệt", "kế", "hoạch"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
		{
			name:  "punctuation only",
			input: "--//..",
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Terms(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenPositions(t *testing.T) {
	tokens := Tokenize("Công văn số 45")
	for i, tok := range tokens {
		if tok.Position != i {
			t.Errorf("token %d has position %d", i, tok.Position)
		}
	}
}
