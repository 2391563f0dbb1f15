package member

import (
	"testing"
	"time"
)

const window = 72 * time.Hour

func tPtr(t time.Time) *time.Time { return &t }

func TestPictureDeadline(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		member   Member
		want     time.Time
		wantNone bool
	}{
		{name: "pending member has no deadline", member: Member{Status: StatusPending}, wantNone: true},
		{name: "rejected member has no deadline", member: Member{Status: StatusRejected}, wantNone: true},
		{
			name:   "approved member deadline is approvedAt + 72h",
			member: Member{Status: StatusApproved, ApprovedAt: tPtr(now)},
			want:   now.Add(72 * time.Hour),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deadline, ok := PictureDeadline(tt.member, window)
			if tt.wantNone {
				if ok {
					t.Errorf("PictureDeadline() = %v, want none", deadline)
				}
				return
			}
			if !ok {
				t.Fatal("PictureDeadline() = none, want a deadline")
			}
			if !deadline.Equal(tt.want) {
				t.Errorf("PictureDeadline() = %v, want %v", deadline, tt.want)
			}
		})
	}
}

func TestIsPictureOverdue(t *testing.T) {
	approvedAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		member Member
		now    time.Time
		want   bool
	}{
		{
			name:   "not approved yet",
			member: Member{Status: StatusPending},
			now:    approvedAt.Add(100 * time.Hour),
			want:   false,
		},
		{
			name:   "approved, within window",
			member: Member{Status: StatusApproved, ApprovedAt: tPtr(approvedAt)},
			now:    approvedAt.Add(71 * time.Hour),
			want:   false,
		},
		{
			name:   "approved, exactly at deadline",
			member: Member{Status: StatusApproved, ApprovedAt: tPtr(approvedAt)},
			now:    approvedAt.Add(72 * time.Hour),
			want:   false,
		},
		{
			name:   "approved 73h ago, no picture",
			member: Member{Status: StatusApproved, ApprovedAt: tPtr(approvedAt)},
			now:    approvedAt.Add(73 * time.Hour),
			want:   true,
		},
		{
			name: "picture uploaded late still satisfies",
			member: Member{
				Status:            StatusApproved,
				ApprovedAt:        tPtr(approvedAt),
				PictureUploadedAt: tPtr(approvedAt.Add(80 * time.Hour)),
			},
			now:  approvedAt.Add(100 * time.Hour),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPictureOverdue(tt.member, window, tt.now); got != tt.want {
				t.Errorf("IsPictureOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeUntilPictureDeadline(t *testing.T) {
	approvedAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	approved := Member{Status: StatusApproved, ApprovedAt: tPtr(approvedAt)}

	if got := TimeUntilPictureDeadline(Member{Status: StatusPending}, window, approvedAt); got != 0 {
		t.Errorf("TimeUntilPictureDeadline(pending) = %v, want 0", got)
	}
	if got := TimeUntilPictureDeadline(approved, window, approvedAt.Add(70*time.Hour)); got != 2*time.Hour {
		t.Errorf("TimeUntilPictureDeadline() = %v, want 2h", got)
	}
	if got := TimeUntilPictureDeadline(approved, window, approvedAt.Add(80*time.Hour)); got != 0 {
		t.Errorf("TimeUntilPictureDeadline(past deadline) = %v, want 0", got)
	}
}

func TestNeedsPictureReminder(t *testing.T) {
	approvedAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	reminderWindow := 24 * time.Hour
	approved := Member{Status: StatusApproved, ApprovedAt: tPtr(approvedAt)}

	tests := []struct {
		name   string
		member Member
		now    time.Time
		want   bool
	}{
		{name: "pending member", member: Member{Status: StatusPending}, now: approvedAt, want: false},
		{name: "deadline far away", member: approved, now: approvedAt.Add(24 * time.Hour), want: false},
		{name: "deadline within reminder window", member: approved, now: approvedAt.Add(50 * time.Hour), want: true},
		{name: "deadline already passed", member: approved, now: approvedAt.Add(80 * time.Hour), want: true},
		{
			name:   "picture already uploaded",
			member: Member{Status: StatusApproved, ApprovedAt: tPtr(approvedAt), PictureUploadedAt: tPtr(approvedAt)},
			now:    approvedAt.Add(50 * time.Hour),
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsPictureReminder(tt.member, window, reminderWindow, tt.now); got != tt.want {
				t.Errorf("NeedsPictureReminder() = %v, want %v", got, tt.want)
			}
		})
	}
}
