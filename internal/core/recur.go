package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var recurrenceParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseRecurrence validates a task recurrence expression and returns the
// underlying schedule. Only plain 5-field cron expressions are accepted;
// descriptors such as @daily are rejected so that stored expressions stay
// uniform.
func ParseRecurrence(expr string) (cron.Schedule, error) {
	if strings.HasPrefix(strings.TrimSpace(expr), "@") {
		return nil, fmt.Errorf("only 5-field cron expressions are supported")
	}
	schedule, err := recurrenceParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence expression: %w", err)
	}
	return schedule, nil
}

// NextOccurrence returns the first execution time strictly after base.
func NextOccurrence(schedule cron.Schedule, base time.Time) time.Time {
	return schedule.Next(base)
}
