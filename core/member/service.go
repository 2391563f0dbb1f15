package member

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/klabu/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = errors.New("member not found")
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrRegNumberExists     = errors.New("a member with this registration number already exists")
	ErrEmailExists         = errors.New("a member with this email already exists")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidStatusChange = errors.New("member registration has already been decided")
)

// Bulk-send target selectors.
const (
	TargetAllMembers       = "all_members"
	TargetApprovedMembers  = "approved_members"
	TargetPendingMembers   = "pending_members"
	TargetDepartmentPrefix = "department:"
)

type (
	Repository interface {
		// CheckUniqueness returns ErrRegNumberExists or ErrEmailExists when a
		// member other than excluded already holds regNumber or email.
		CheckUniqueness(ctx context.Context, regNumber, email string, excluded ...Member) error
		CreateMember(ctx context.Context, m Member) (Member, error)
		GetMember(ctx context.Context, filter GetFilter) (Member, error)
		// QueryMembers applies AND on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Member.FullName, Member.RegNumber or Member.Email.
		QueryMembers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error)
		UpdateMember(ctx context.Context, m Member) (Member, error)
		UpdateOrCreateMember(ctx context.Context, m Member) (Member, error)
	}

	DepartmentFilter struct {
		ID   string
		Slug string
		Name string
	}

	DepartmentRepository interface {
		CreateDepartment(ctx context.Context, d Department) (Department, error)
		GetDepartment(ctx context.Context, filter DepartmentFilter) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)
		UpdateDepartment(ctx context.Context, d Department) (Department, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		CreateCourse(ctx context.Context, c Course) (Course, error)
	}

	Service struct {
		repo     Repository
		deptRepo DepartmentRepository
		mailSvc  core.EmailGateway
		logger   core.Logger
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	deptRepo DepartmentRepository,
	mailSvc core.EmailGateway,
	logger core.Logger,
	conf *core.Config,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:     repo,
		deptRepo: deptRepo,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
		validate: validate,
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, regNumber, email string, excluded ...Member) error {
	if err := svc.repo.CheckUniqueness(ctx, regNumber, email, excluded...); err != nil {
		var field string
		switch err {
		case ErrRegNumberExists:
			field = "reg_number"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register validates a candidate registration and creates a pending Member.
// Confirmation and staff-alert notifications are dispatched best-effort: a
// notification failure is logged but never rolls back the created Member.
func (svc *Service) Register(ctx context.Context, nm NewMember) (Member, error) {
	if err := nm.Validate(ctx, svc.validate, svc); err != nil {
		return Member{}, err
	}

	dept, err := svc.deptRepo.GetDepartment(ctx, DepartmentFilter{ID: nm.DepartmentID})
	if err != nil {
		if err == ErrDepartmentNotFound {
			return Member{}, core.NewValidationError(err, core.FieldError{Field: "department_id", Error: err.Error()})
		}
		return Member{}, err
	}
	if nm.CourseID != "" {
		if _, err = svc.deptRepo.GetCourse(ctx, nm.CourseID); err != nil {
			if err == ErrCourseNotFound {
				return Member{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
			}
			return Member{}, err
		}
	}

	now := NowFunc().UTC()
	m := Member{
		RegNumber:    nm.RegNumber,
		FullName:     nm.FullName,
		Email:        nm.Email,
		DepartmentID: nm.DepartmentID,
		CourseID:     nm.CourseID,
		CourseOther:  nm.CourseOther,
		Status:       StatusPending,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err = m.SetPassword(nm.Password); err != nil {
		return Member{}, err
	}
	m, err = svc.repo.CreateMember(ctx, m)
	if err != nil {
		return Member{}, err
	}

	svc.sendRegistrationMail(ctx, m, dept)
	return m, nil
}

// Approve transitions a pending Member to approved and starts the picture
// upload window. Only staff or the leader of the member's department may
// approve; approved/rejected are terminal.
func (svc *Service) Approve(ctx context.Context, id string, actor Member) (Member, error) {
	m, dept, err := svc.getForModeration(ctx, id, actor)
	if err != nil {
		return Member{}, err
	}

	now := NowFunc().UTC()
	m.Status = StatusApproved
	m.ApprovedAt = &now
	m.UpdatedAt = now
	m, err = svc.repo.UpdateMember(ctx, m)
	if err != nil {
		return Member{}, err
	}

	svc.sendApprovalMail(ctx, m, dept)
	return m, nil
}

// Reject transitions a pending Member to rejected. The reason is only carried
// into the rejection notification; it is not persisted.
func (svc *Service) Reject(ctx context.Context, id string, actor Member, reason string) (Member, error) {
	m, dept, err := svc.getForModeration(ctx, id, actor)
	if err != nil {
		return Member{}, err
	}

	now := NowFunc().UTC()
	m.Status = StatusRejected
	m.ApprovedAt = nil
	m.UpdatedAt = now
	m, err = svc.repo.UpdateMember(ctx, m)
	if err != nil {
		return Member{}, err
	}

	svc.sendRejectionMail(ctx, m, dept, reason)
	return m, nil
}

func (svc *Service) getForModeration(ctx context.Context, id string, actor Member) (Member, Department, error) {
	m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return Member{}, Department{}, err
	}

	dept, err := svc.deptRepo.GetDepartment(ctx, DepartmentFilter{ID: m.DepartmentID})
	if err != nil && err != ErrDepartmentNotFound {
		return Member{}, Department{}, err
	}

	if !CanModerate(actor, m, dept) {
		return Member{}, Department{}, ErrPermissionDenied
	}
	if !m.IsPending() {
		return Member{}, Department{}, ErrInvalidStatusChange
	}
	return m, dept, nil
}

// MarkPictureUploaded records that the member's profile picture has been
// stored (binary storage is handled by the upload layer).
func (svc *Service) MarkPictureUploaded(ctx context.Context, id string) (Member, error) {
	m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return Member{}, err
	}
	now := NowFunc().UTC()
	m.PictureUploadedAt = &now
	m.UpdatedAt = now
	return svc.repo.UpdateMember(ctx, m)
}

func (svc *Service) SetLastLogin(ctx context.Context, m Member) (Member, error) {
	m.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateMember(ctx, m)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByRegNumber(ctx context.Context, regNum string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{RegNumber: normalizeRegNumber(regNum)})
}

func (svc *Service) GetByRegNumberOrEmail(ctx context.Context, uname string) (Member, error) {
	uname = core.CleanString(uname)
	if strings.ContainsRune(uname, '@') {
		uname = strings.ToLower(uname)
	} else {
		uname = normalizeRegNumber(uname)
	}
	return svc.repo.GetMember(ctx, GetFilter{RegNumberOrEmail: uname})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, orig Member, um UpdateMember) (Member, error) {
	if err := um.Validate(orig, svc.validate); err != nil {
		return Member{}, err
	}
	orig.FullName = um.FullName
	orig.CourseID = um.CourseID
	orig.CourseOther = um.CourseOther
	orig.UpdatedAt = NowFunc().UTC()
	if um.Password != "" {
		if err := orig.SetPassword(um.Password); err != nil {
			return Member{}, err
		}
	}
	return svc.repo.UpdateMember(ctx, orig)
}

// ResolveRecipients expands a bulk-send target selector into email addresses.
// Supported selectors: all_members, approved_members, pending_members and
// department:<name-or-slug>.
func (svc *Service) ResolveRecipients(ctx context.Context, target string) ([]string, error) {
	filter := new(QueryFilter)
	switch {
	case target == TargetAllMembers:
	case target == TargetApprovedMembers:
		filter.Status = StatusApproved
	case target == TargetPendingMembers:
		filter.Status = StatusPending
	case strings.HasPrefix(target, TargetDepartmentPrefix):
		name := core.CleanString(strings.TrimPrefix(target, TargetDepartmentPrefix))
		dept, err := svc.deptRepo.GetDepartment(ctx, DepartmentFilter{Slug: slugify(name)})
		if err == ErrDepartmentNotFound {
			dept, err = svc.deptRepo.GetDepartment(ctx, DepartmentFilter{Name: name})
		}
		if err != nil {
			return nil, err
		}
		filter.DepartmentID = dept.ID
	default:
		return nil, errors.New("unknown target: " + target)
	}

	members, err := svc.repo.QueryMembers(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(members))
	for _, m := range members {
		if m.Email != "" {
			emails = append(emails, m.Email)
		}
	}
	return emails, nil
}

// Picture-deadline policy over the configured upload window.

func (svc *Service) PictureDeadline(m Member) (time.Time, bool) {
	return PictureDeadline(m, svc.conf.Member.PictureUploadWindow)
}

func (svc *Service) IsPictureOverdue(m Member) bool {
	return IsPictureOverdue(m, svc.conf.Member.PictureUploadWindow, NowFunc().UTC())
}

// DueForPictureReminder lists approved members without a picture whose upload
// deadline falls within the configured reminder window (or has passed).
func (svc *Service) DueForPictureReminder(ctx context.Context) ([]Member, error) {
	missing := true
	members, err := svc.repo.QueryMembers(ctx, &QueryFilter{Status: StatusApproved, PictureMissing: &missing}, nil)
	if err != nil {
		return nil, err
	}
	now := NowFunc().UTC()
	due := make([]Member, 0, len(members))
	for _, m := range members {
		if NeedsPictureReminder(m, svc.conf.Member.PictureUploadWindow, svc.conf.Member.PictureReminderWindow, now) {
			due = append(due, m)
		}
	}
	return due, nil
}

// SendPictureReminders emails every member due for a picture upload reminder
// and returns the number of successful sends.
func (svc *Service) SendPictureReminders(ctx context.Context) (int, error) {
	due, err := svc.DueForPictureReminder(ctx)
	if err != nil {
		return 0, err
	}
	var sent int
	for _, m := range due {
		if svc.sendPictureReminderMail(m) {
			sent++
		}
	}
	return sent, nil
}

// Departments & Courses

func (svc *Service) QueryDepartments(ctx context.Context) ([]Department, error) {
	return svc.deptRepo.QueryDepartments(ctx)
}

func (svc *Service) GetDepartment(ctx context.Context, filter DepartmentFilter) (Department, error) {
	return svc.deptRepo.GetDepartment(ctx, filter)
}

func (svc *Service) QueryCourses(ctx context.Context) ([]Course, error) {
	return svc.deptRepo.QueryCourses(ctx)
}

// SeedDepartments creates any of the given departments that do not exist yet
// and returns the number created.
func (svc *Service) SeedDepartments(ctx context.Context, depts []Department) (int, error) {
	var created int
	for _, d := range depts {
		if d.Slug == "" {
			d.Slug = slugify(d.Name)
		}
		if _, err := svc.deptRepo.GetDepartment(ctx, DepartmentFilter{Slug: d.Slug}); err == nil {
			continue
		} else if err != ErrDepartmentNotFound {
			return created, err
		}
		if _, err := svc.deptRepo.CreateDepartment(ctx, d); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// SeedCourses creates any of the given courses that do not exist yet (by
// name, case-insensitively) and returns the number created.
func (svc *Service) SeedCourses(ctx context.Context, courses []Course) (int, error) {
	existing, err := svc.deptRepo.QueryCourses(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[strings.ToLower(c.Name)] = struct{}{}
	}

	var created int
	for _, c := range courses {
		if _, ok := seen[strings.ToLower(c.Name)]; ok {
			continue
		}
		if _, err := svc.deptRepo.CreateCourse(ctx, c); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func slugify(s string) string {
	s = strings.ToLower(core.CleanString(s))
	s = strings.NewReplacer("&", "and", "'", "").Replace(s)
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}), "-")
}
