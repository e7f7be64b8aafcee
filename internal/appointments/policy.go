package appointments

import (
	"fmt"
	"time"
)

// DefaultCancellationWindow is how far before the session start a
// cancellation is still permitted.
const DefaultCancellationWindow = 24 * time.Hour

// CancellationDecision is the outcome of a cancellation policy check.
type CancellationDecision struct {
	CanCancel          bool    `json:"can_cancel"`
	Reason             string  `json:"reason,omitempty"`
	HoursBeforeSession float64 `json:"hours_before_session"`
}

// CheckCancellation decides whether an appointment starting at the given
// date and time-of-day may still be cancelled at `now`. Cancellation is
// allowed strictly while the session start is more than `window` in the
// future; exactly at the boundary it is denied.
func CheckCancellation(date time.Time, startTime string, now time.Time, window time.Duration) (CancellationDecision, error) {
	start, err := CombineDateTime(date, startTime)
	if err != nil {
		return CancellationDecision{}, err
	}

	until := start.Sub(now)
	hours := until.Hours()

	if until > window {
		return CancellationDecision{
			CanCancel:          true,
			HoursBeforeSession: hours,
		}, nil
	}

	return CancellationDecision{
		CanCancel: false,
		Reason: fmt.Sprintf(
			"cancellations are only allowed more than %.0f hours before the session; please contact the other party directly",
			window.Hours()),
		HoursBeforeSession: hours,
	}, nil
}
