package member

import (
	"context"
	"fmt"
	"time"
)

// Email template names; each resolves to assets/templates/email/<name>.txt
// (and optionally .gohtml).
const (
	registrationConfirmationTmpl = "registration_confirmation"
	staffNewRegistrationTmpl     = "staff_new_registration"
	memberApprovedTmpl           = "member_approved"
	staffMemberApprovedTmpl      = "staff_member_approved"
	memberRejectedTmpl           = "member_rejected"
	staffMemberRejectedTmpl      = "staff_member_rejected"
	pictureReminderTmpl          = "picture_reminder"

	// AnnouncementTmpl and TestEmailTmpl back the bulk-send and mail-check
	// admin commands.
	AnnouncementTmpl = "announcement"
	TestEmailTmpl    = "test_email"
)

// staffAlertEmails returns the addresses that should be alerted on member
// lifecycle events: all staff plus the leader of the member's department.
func (svc *Service) staffAlertEmails(ctx context.Context, dept Department) []string {
	staff := true
	members, err := svc.repo.QueryMembers(ctx, &QueryFilter{IsStaff: &staff}, nil)
	if err != nil {
		svc.logger.Error("querying staff members", "err", err)
		return nil
	}
	emails := make([]string, 0, len(members)+1)
	for _, m := range members {
		if m.Email != "" {
			emails = append(emails, m.Email)
		}
	}
	if dept.LeaderID != "" {
		if leader, err := svc.repo.GetMember(ctx, GetFilter{ID: dept.LeaderID}); err == nil && leader.Email != "" {
			emails = append(emails, leader.Email)
		}
	}
	return emails
}

func (svc *Service) sendRegistrationMail(ctx context.Context, m Member, dept Department) {
	subject := fmt.Sprintf("Welcome to %s - Registration Received", svc.conf.AppName)
	data := map[string]interface{}{"Member": m, "Department": dept}
	if _, err := svc.mailSvc.SendOne(m.Email, subject, registrationConfirmationTmpl, data, "", true /* failSilently */); err != nil {
		svc.logger.Error("sending registration confirmation", "member", m.RegNumber, "err", err)
	}

	staff := svc.staffAlertEmails(ctx, dept)
	if len(staff) == 0 {
		return
	}
	subject = fmt.Sprintf("New Registration: %s (%s)", m.FullName, m.RegNumber)
	res := svc.mailSvc.SendBatch(staff, subject, staffNewRegistrationTmpl, data, "", svc.conf.Mail.BatchSize)
	if res.Failed > 0 {
		svc.logger.Error("sending staff registration alert", "member", m.RegNumber, "failed", res.Failed, "errs", res.Errors)
	}
}

func (svc *Service) sendApprovalMail(ctx context.Context, m Member, dept Department) {
	deadline, _ := svc.PictureDeadline(m)
	subject := fmt.Sprintf("%s - Registration Approved", svc.conf.AppName)
	data := map[string]interface{}{
		"Member":          m,
		"Department":      dept,
		"PictureDeadline": deadline.Format(time.RFC1123),
		"PictureWindow":   svc.conf.Member.PictureUploadWindow.String(),
	}
	if _, err := svc.mailSvc.SendOne(m.Email, subject, memberApprovedTmpl, data, "", true); err != nil {
		svc.logger.Error("sending approval notification", "member", m.RegNumber, "err", err)
	}

	staff := svc.staffAlertEmails(ctx, dept)
	if len(staff) == 0 {
		return
	}
	subject = fmt.Sprintf("Member Approved: %s (%s)", m.FullName, m.RegNumber)
	res := svc.mailSvc.SendBatch(staff, subject, staffMemberApprovedTmpl, data, "", svc.conf.Mail.BatchSize)
	if res.Failed > 0 {
		svc.logger.Error("sending staff approval alert", "member", m.RegNumber, "failed", res.Failed, "errs", res.Errors)
	}
}

func (svc *Service) sendRejectionMail(ctx context.Context, m Member, dept Department, reason string) {
	subject := fmt.Sprintf("%s - Registration Update", svc.conf.AppName)
	data := map[string]interface{}{"Member": m, "Department": dept, "Reason": reason}
	if _, err := svc.mailSvc.SendOne(m.Email, subject, memberRejectedTmpl, data, "", true); err != nil {
		svc.logger.Error("sending rejection notification", "member", m.RegNumber, "err", err)
	}

	staff := svc.staffAlertEmails(ctx, dept)
	if len(staff) == 0 {
		return
	}
	subject = fmt.Sprintf("Member Rejected: %s (%s)", m.FullName, m.RegNumber)
	res := svc.mailSvc.SendBatch(staff, subject, staffMemberRejectedTmpl, data, "", svc.conf.Mail.BatchSize)
	if res.Failed > 0 {
		svc.logger.Error("sending staff rejection alert", "member", m.RegNumber, "failed", res.Failed, "errs", res.Errors)
	}
}

func (svc *Service) sendPictureReminderMail(m Member) bool {
	deadline, ok := svc.PictureDeadline(m)
	if !ok {
		return false
	}
	now := NowFunc().UTC()
	subject := fmt.Sprintf("%s - Profile Picture Reminder", svc.conf.AppName)
	data := map[string]interface{}{
		"Member":   m,
		"Deadline": deadline.Format(time.RFC1123),
		"Overdue":  now.After(deadline),
	}
	sent, err := svc.mailSvc.SendOne(m.Email, subject, pictureReminderTmpl, data, "", true)
	if err != nil {
		svc.logger.Error("sending picture reminder", "member", m.RegNumber, "err", err)
	}
	return sent
}
