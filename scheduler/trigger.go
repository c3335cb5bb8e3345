package scheduler

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vpbank/beanpoller/models"
)

// cronParser accepts the traditional 5-field cron form and an optional
// leading seconds field, matching fixed-rate "0/5 * * * * ?"-style
// expressions. The trailing "?" day-of-week placeholder from that form is
// not meaningful to robfig/cron and is normalized to "*" before parsing (see
// normalizeCron).
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Trigger is a schedule specification: either a cron schedule or a fixed
// interval, plus a spread start offset.
type Trigger struct {
	Name string

	// Exactly one of Cron or Interval is set.
	Cron     cron.Schedule
	Interval time.Duration

	// StartTime is the instant the first tick becomes eligible to fire:
	// now()+spread(period) for an interval trigger, and the first cron
	// instant after now() for a cron trigger.
	StartTime time.Time
}

// NextAfter returns the next fire time strictly after after.
func (t Trigger) NextAfter(after time.Time) time.Time {
	if t.Cron != nil {
		return t.Cron.Next(after)
	}
	return after.Add(t.Interval)
}

// CreateTrigger builds the Trigger for server:
//   - A present and valid CronExpression wins.
//   - Otherwise fall back to server.RunPeriodSeconds, or globalPeriod when
//     that is zero.
//
// name is typically the JobKey assigned to this scheduling, reusing the
// job-key scheme for trigger names so that trigger names never collide.
func CreateTrigger(name string, server models.Server, globalPeriod time.Duration, now time.Time) Trigger {
	if server.CronExpression != "" {
		if sched, err := normalizeAndParseCron(server.CronExpression); err == nil {
			return Trigger{
				Name:      name,
				Cron:      sched,
				StartTime: sched.Next(now), // cron triggers fire at their own computed instants; no spread.
			}
		}
		// An invalid cron expression falls through to the interval branch
		// rather than failing the whole server.
	}

	period := time.Duration(server.RunPeriodSeconds) * time.Second
	if period <= 0 {
		period = globalPeriod
	}
	if period <= 0 {
		period = 60 * time.Second
	}

	return Trigger{
		Name:      name,
		Interval:  period,
		StartTime: computeSpreadStartDate(now, period),
	}
}

// ValidCronExpression reports whether expr parses as a cron schedule, after
// the "?" normalization described on cronParser.
func ValidCronExpression(expr string) bool {
	_, err := normalizeAndParseCron(expr)
	return err == nil
}

func normalizeAndParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(normalizeCron(expr))
}

// normalizeCron replaces the quartz-style "?" day-of-week/day-of-month
// placeholder with "*", which robfig/cron treats identically for trigger
// purposes (the distinction between "?" and "*" only matters when a cron
// engine forbids specifying both dom and dow concretely in the same
// expression — a restriction this agent does not enforce).
func normalizeCron(expr string) string {
	return strings.ReplaceAll(expr, "?", "*")
}
