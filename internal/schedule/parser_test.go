package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{name: "every second", expression: "* * * * * *"},
		{name: "top of every hour", expression: "0 0 * * * *"},
		{name: "every five seconds", expression: "*/5 * * * * *"},
		{name: "weekdays at nine", expression: "0 0 9 * * MON-FRI"},
		{name: "descriptor", expression: "@hourly"},
		{name: "surrounding whitespace", expression: "  0 * * * * *  "},
		{name: "empty", expression: "", wantErr: true},
		{name: "garbage", expression: "invalid", wantErr: true},
		{name: "four fields", expression: "* * * *", wantErr: true},
		{name: "five fields", expression: "* * * * *", wantErr: true},
		{name: "second out of range", expression: "60 * * * * *", wantErr: true},
		{name: "seven fields", expression: "0 0 9 * * MON-FRI 2030", wantErr: true},
	}

	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := p.Parse(tt.expression)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidExpression)
				assert.Nil(t, rule)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, rule)
			assert.NoError(t, p.Validate(tt.expression))
		})
	}
}

func TestParser_DayOfWeekZeroIsSunday(t *testing.T) {
	p := NewParser(nil)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) // Wednesday
	sunday := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)

	for _, expr := range []string{"0 0 12 * * 0", "0 0 12 * * SUN"} {
		rule, err := p.Parse(expr)
		require.NoError(t, err, expr)
		assert.True(t, rule.Next(from).Equal(sunday), "%s: %v", expr, rule.Next(from))
	}

	_, err := p.Parse("0 0 12 * * 7")
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestParser_DefaultLocationIsUTC(t *testing.T) {
	p := NewParser(nil)
	assert.Equal(t, time.UTC, p.Location())

	rule, err := p.Parse("0 0 12 * * *")
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, rule.Next(from).Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestParser_EvaluatesInConfiguredLocation(t *testing.T) {
	plusFive := time.FixedZone("PLUS5", 5*60*60)
	p := NewParser(plusFive)

	rule, err := p.Parse("0 0 12 * * *")
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// 12:00 at +05:00 is 07:00 UTC.
	assert.True(t, rule.Next(from).Equal(time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)))
}

func TestParser_ExplicitZonePrefixWins(t *testing.T) {
	p := NewParser(time.FixedZone("PLUS5", 5*60*60))

	rule, err := p.Parse("CRON_TZ=UTC 0 0 12 * * *")
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, rule.Next(from).Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}
