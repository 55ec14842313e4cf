// Package schedule parses six-field recurrence rules and decides when a task
// is due. It has no knowledge of how tasks are stored.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression is returned for recurrence rules that do not parse.
var ErrInvalidExpression = errors.New("invalid cron expression")

// Rule yields successive occurrences of a recurrence. Next returns the first
// occurrence strictly after t, or the zero time when the rule is exhausted.
type Rule interface {
	Next(t time.Time) time.Time
}

// Fields: second, minute, hour, day-of-month, month, day-of-week.
// Descriptors such as @hourly are accepted as shorthand.
const parseOptions = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// Parser turns expressions into Rules evaluated in a fixed location.
type Parser struct {
	parser   cron.Parser
	location *time.Location
}

// NewParser creates a parser whose rules are evaluated in loc.
// A nil loc means UTC.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		parser:   cron.NewParser(parseOptions),
		location: loc,
	}
}

// Location returns the zone rules are evaluated in.
func (p *Parser) Location() *time.Location {
	return p.location
}

// Parse parses expr. An explicit CRON_TZ= or TZ= prefix overrides the
// parser's location.
func (p *Parser) Parse(expr string) (Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	sched, err := p.parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	if spec, ok := sched.(*cron.SpecSchedule); ok && !hasZonePrefix(expr) {
		spec.Location = p.location
	}
	return sched, nil
}

// Validate reports whether expr parses.
func (p *Parser) Validate(expr string) error {
	_, err := p.Parse(expr)
	return err
}

func hasZonePrefix(expr string) bool {
	return strings.HasPrefix(expr, "CRON_TZ=") || strings.HasPrefix(expr, "TZ=")
}
