package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  Kind
		wantNames []string
	}{
		{"arithmetic", "1+1", Value, nil},
		{"call", `fmt.Println("hi")`, Value, nil},
		{"func literal call", "func() int { return 1 }()", Value, nil},
		{"short assignment", "x := 42", Assignment, []string{"x"}},
		{"multi assignment", "a, _, c := 1, 2, 3", Assignment, []string{"a", "c"}},
		{"plain assignment", "x = 7", Assignment, []string{"x"}},
		{"var declaration", "var s string = \"go\"", Variable, []string{"s"}},
		{"const declaration", "const limit = 10", Variable, []string{"limit"}},
		{"single import", `import "strings"`, Import, []string{"strings"}},
		{"grouped import", "import (\n\t\"fmt\"\n\t\"net/http\"\n)", Import, []string{"fmt", "net/http"}},
		{"type", "type Point struct{ X, Y int }", Type, []string{"Point"}},
		{"function", "func double(n int) int { return n * 2 }", Function, []string{"double"}},
		{"method", "func (p Point) Sum() int { return p.X + p.Y }", Function, []string{"Sum"}},
		{"for loop", "for i := 0; i < 3; i++ { fmt.Println(i) }", Statement, nil},
		{"increment", "x++", Statement, nil},
		{"compound assignment", "x += 2", Statement, nil},
		{"multiple statements", "x := 1; y := 2", Statement, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, expr.Kind, "kind was %s", expr.Kind)
			assert.Equal(t, tt.wantNames, expr.Names)
		})
	}
}

func TestParse_TrimsSource(t *testing.T) {
	expr, err := Parse("  1 + 2\n")
	require.NoError(t, err)
	assert.Equal(t, "1 + 2", expr.Source)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		wantIncomplete bool
	}{
		{"empty", "   ", false},
		{"garbage", "1 +* )", false},
		{"bad import", "import strings", false},
		{"open brace", "for i := 0; i < 3; i++ {", true},
		{"open paren", "fmt.Println(1,", true},
		{"open func", "func add(a, b int) int {", true},
		{"raw string", "`multi", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.input, perr.Source)
			assert.Equal(t, tt.wantIncomplete, IsIncomplete(err))
		})
	}
}

func TestIsIncomplete_OtherErrors(t *testing.T) {
	assert.False(t, IsIncomplete(nil))
	assert.False(t, IsIncomplete(errors.New("boom")))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "value", Value.String())
	assert.Equal(t, "function", Function.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
	assert.True(t, Import.IsDeclaration())
	assert.False(t, Assignment.IsDeclaration())
}
