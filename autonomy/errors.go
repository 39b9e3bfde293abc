package autonomy

import "errors"

var (
	// ErrNoGoalAboveCutoff is returned by Seeker.Run when every candidate
	// goal scored below ConfidenceCutoff (§4.9 step 2).
	ErrNoGoalAboveCutoff = errors.New("autonomy: no goal scored above the confidence cutoff")

	// ErrGoalNotApproved is returned when the goal-choice approver declines
	// the top-ranked candidate (§4.9 step 3).
	ErrGoalNotApproved = errors.New("autonomy: goal-choice approver rejected the top-ranked goal")
)
