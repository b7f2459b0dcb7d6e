package normalize

import "testing"

func TestIdentityFields(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"email lowercased", Email, "  Chair@RulePost.Example ", "chair@rulepost.example"},
		{"email blank", Email, "   ", ""},
		{"name keeps case", Name, "  Kate MacLeod ", "Kate MacLeod"},
		{"name blank", Name, "", ""},
		{"team uppercased", Team, " nz ", "NZ"},
		{"committee folds", Team, "rc", "RC"},
		{"team blank", Team, "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
