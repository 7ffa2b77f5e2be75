package billing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned for a duration outside the accepted grammar.
var ErrInvalidDuration = errors.New("invalid subscription duration")

type termUnit int

const (
	unitDay termUnit = iota
	unitWeek
	unitMonth
)

var termPattern = regexp.MustCompile(`^(\d+)\s*(days?|weeks?|months?)?$`)

// Term is a parsed subscription length.
type Term struct {
	N    int
	unit termUnit
}

// ParseTerm accepts a bare integer (days) or "<n> day(s)|week(s)|month(s)". n must be positive.
func ParseTerm(s string) (Term, error) {
	m := termPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Term{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Term{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	t := Term{N: n}
	switch strings.TrimSuffix(m[2], "s") {
	case "", "day":
		t.unit = unitDay
	case "week":
		t.unit = unitWeek
	case "month":
		t.unit = unitMonth
	}
	return t, nil
}

// ExpiresAt returns from + term. Months are calendar months.
func (t Term) ExpiresAt(from time.Time) time.Time {
	switch t.unit {
	case unitWeek:
		return from.AddDate(0, 0, 7*t.N)
	case unitMonth:
		return from.AddDate(0, t.N, 0)
	default:
		return from.AddDate(0, 0, t.N)
	}
}

func (t Term) String() string {
	name := [...]string{"day", "week", "month"}[t.unit]
	if t.N != 1 {
		name += "s"
	}
	return fmt.Sprintf("%d %s", t.N, name)
}
