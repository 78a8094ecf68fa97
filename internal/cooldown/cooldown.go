// Package cooldown derives remaining wait time from a stored last-action
// instant and a fixed duration. It is a read-side projection only: the
// authoritative gate is always re-evaluated inside the settlement
// transaction, never the client's view of this value.
package cooldown

import "time"

const (
	CheckInWindow  = 24 * time.Hour
	MiningDuration = 24 * time.Hour
)

type Status struct {
	Ready     bool          `json:"ready"`
	Remaining time.Duration `json:"-"`
}

// Remaining returns max(0, startedAt+d-now). A nil startedAt means the
// action has never run and carries no cooldown.
func Remaining(startedAt *time.Time, d time.Duration, now time.Time) time.Duration {
	if startedAt == nil {
		return 0
	}
	left := startedAt.Add(d).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func At(startedAt *time.Time, d time.Duration, now time.Time) Status {
	left := Remaining(startedAt, d, now)
	return Status{Ready: left == 0, Remaining: left}
}
