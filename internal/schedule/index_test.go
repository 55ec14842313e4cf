package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndex_SkipsUnparseable(t *testing.T) {
	exprs := map[string]string{
		"backup":  "0 0 3 * * *",
		"cleanup": "*/10 * * * * *",
		"broken":  "not a cron",
	}

	idx, failures := BuildIndex(NewParser(nil), exprs)

	assert.Len(t, idx, 2)
	assert.Equal(t, []string{"backup", "cleanup"}, idx.Slugs())

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures["broken"], ErrInvalidExpression)

	_, ok := idx.Lookup("broken")
	assert.False(t, ok)
	rule, ok := idx.Lookup("backup")
	assert.True(t, ok)
	assert.NotNil(t, rule)
}

func TestBuildIndex_Empty(t *testing.T) {
	idx, failures := BuildIndex(NewParser(nil), nil)
	assert.Empty(t, idx)
	assert.Nil(t, failures)
}
