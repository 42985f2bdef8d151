package simerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCategoryWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"配置错误", Configuration("load", "scenario.yaml", errBoom), CategoryConfiguration},
		{"校验错误", Validation("validate", "", errBoom), CategoryValidation},
		{"生成错误", Generation("tick", "depth:0", errBoom), CategoryGeneration},
		{"编码错误", Encoding("encode", "pgn 128267", errBoom), CategoryEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CategoryOf(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsCategory(tt.err, tt.want))
			assert.ErrorIs(t, tt.err, errBoom)
		})
	}
}

func TestCategoryThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("start scenario: %w", Configuration("load", "", errBoom))
	assert.True(t, IsCategory(err, CategoryConfiguration))
	assert.False(t, IsCategory(err, CategoryEncoding))
	assert.Contains(t, err.Error(), "configuration load")
}

func TestNilErrorStaysNil(t *testing.T) {
	assert.NoError(t, Generation("tick", "x", nil))
	_, ok := CategoryOf(errBoom)
	assert.False(t, ok)
}
