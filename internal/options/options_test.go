package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	set, err := Parse(`result_folder: RS_on_toy algorithm_info: "a random search" ` +
		`base_evaluation_triggers: 1,2,5 precision_x:4 bogus`)
	require.NoError(t, err)

	assert.Equal(t, "RS_on_toy", set.String("result_folder", "default"))
	assert.Equal(t, "a random search", set.String("algorithm_info", ""))
	assert.Equal(t, "ALG", set.String("algorithm_name", "ALG"))

	n, err := set.Int("precision_x", 8)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	bases, err := set.Ints("base_evaluation_triggers", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, bases)

	assert.Equal(t, []string{"result_folder", "algorithm_info", "base_evaluation_triggers", "precision_x"}, set.Keys())
	assert.Equal(t, []string{"algorithm_info", "base_evaluation_triggers"}, set.Unknown("result_folder", "precision_x"))
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{
		`algorithm_info: "unterminated`,
		`result_folder:`,
		`result_folder: precision_x: 3`,
	} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestTypedValues(t *testing.T) {
	set, err := Parse("target_precision: 1e-8 number_target_triggers: ten base_evaluation_triggers: ,")
	require.NoError(t, err)

	f, err := set.Float("target_precision", 0)
	require.NoError(t, err)
	assert.Equal(t, 1e-8, f)

	_, err = set.Int("number_target_triggers", 100)
	assert.Error(t, err)

	_, err = set.Ints("base_evaluation_triggers", []int{1})
	assert.Error(t, err)

	def, err := set.Ints("missing", []int{1, 2, 5})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, def)
}

func TestListValuesWithBlanks(t *testing.T) {
	set, err := Parse("base_evaluation_triggers: 1, 2, 5 precision_x: 4")
	require.NoError(t, err)
	bases, err := set.Ints("base_evaluation_triggers", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, bases)
	assert.Equal(t, []string{"base_evaluation_triggers", "precision_x"}, set.Keys())

	set, err = Parse(`base_evaluation_triggers: "1, 2, 5"`)
	require.NoError(t, err)
	bases, err = set.Ints("base_evaluation_triggers", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, bases)
}

func TestParseRanges(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "1-3,5", want: []int{1, 2, 3, 5}},
		{in: "5,1,1", want: []int{1, 5}},
		{in: "4-", want: []int{4, 5, 6}},
		{in: "-2", want: []int{1, 2}},
		{in: "3-1", wantErr: true},
		{in: "7", wantErr: true},
		{in: "x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRanges(tt.in, 1, 6)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
