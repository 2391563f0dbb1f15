package member

import "time"

// Picture-deadline policy: an approved member must upload a profile picture
// within `window` (72h by default) of approval. Pending and rejected members
// have no deadline; an upload satisfies the obligation permanently.

// PictureDeadline returns the picture upload deadline for a member.
// The second return is false for members that have not been approved.
func PictureDeadline(m Member, window time.Duration) (time.Time, bool) {
	if m.ApprovedAt == nil {
		return time.Time{}, false
	}
	return m.ApprovedAt.Add(window), true
}

// IsPictureOverdue reports whether the member has missed the picture upload
// deadline. Always false once a picture has been uploaded.
func IsPictureOverdue(m Member, window time.Duration, now time.Time) bool {
	if m.HasPicture() {
		return false
	}
	deadline, ok := PictureDeadline(m, window)
	if !ok {
		return false
	}
	return now.After(deadline)
}

// TimeUntilPictureDeadline returns the time remaining before the picture
// upload deadline, clamped at zero. Members without a deadline get zero.
func TimeUntilPictureDeadline(m Member, window time.Duration, now time.Time) time.Duration {
	deadline, ok := PictureDeadline(m, window)
	if !ok {
		return 0
	}
	if remaining := deadline.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// NeedsPictureReminder reports whether a reminder email is due: the member is
// approved, has no picture, and the deadline falls within `reminderWindow`
// from now (or has already passed).
func NeedsPictureReminder(m Member, window, reminderWindow time.Duration, now time.Time) bool {
	if m.HasPicture() {
		return false
	}
	deadline, ok := PictureDeadline(m, window)
	if !ok {
		return false
	}
	return !deadline.After(now.Add(reminderWindow))
}
