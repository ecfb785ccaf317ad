package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalCondition(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"if 1", true},
		{"if 0", false},
		{"if no", false},
		{"if none", false},
		{`if "hello"`, true},
		{"if", false},

		{"if 3 > 2", true},
		{"if 2 >= 3", false},
		{"if 10 == 10.0", true},
		{"if cat == cat", true},
		{"if cat != dog", true},
		{"if 5 != 5", false},
		{"if apple < banana", false},

		{"if red IN red, green, blue", true},
		{"if pink IN red, green, blue", false},
		{"if pink !IN red, green, blue", true},

		{"if i like pizza CONTAINS pizza", true},
		{"if i like pizza CONTAINS burgers", false},
		{"if i like pizza !CONTAINS burgers", true},
		{"if pizzazz CONTAINS pizza", false},

		{"if hello world STARTSWITH hello", true},
		{"if hello world ENDSWITH world", true},
		{"if hello world !STARTSWITH world", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, evalCondition(tc.text), tc.text)
	}
}

func TestPrepConditionText(t *testing.T) {
	assert.Equal(t, "if {answer[*]} IN red, green",
		prepConditionText("if {answer} in red, green"))
	assert.Equal(t, "if {answer[0]} CONTAINS yes",
		prepConditionText("if {answer[0]} contains yes"))
	assert.Equal(t, "if score > 3", prepConditionText("if score > 3"))
}
