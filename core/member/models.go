package member

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/klabu/core"
)

// Status is the lifecycle state of a Member registration.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

type Member struct {
	ID                string     `json:"id"`
	RegNumber         string     `json:"reg_number"`
	FullName          string     `json:"full_name"`
	Email             string     `json:"email"`
	DepartmentID      string     `json:"department_id"`
	CourseID          string     `json:"course_id,omitempty"`
	CourseOther       string     `json:"course_other,omitempty"`
	Status            Status     `json:"status"`
	IsStaff           bool       `json:"is_staff"`
	PasswordHash      []byte     `json:"-"`
	RegisteredAt      time.Time  `json:"registered_at"` // UTC
	ApprovedAt        *time.Time `json:"approved_at"`   // UTC; non-nil iff Status == approved
	PictureUploadedAt *time.Time `json:"picture_uploaded_at,omitempty"`
	LastLogin         time.Time  `json:"last_login"` // UTC
	UpdatedAt         time.Time  `json:"updated_at"` // UTC
}

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

func (m *Member) IsPending() bool  { return m.Status == StatusPending }
func (m *Member) IsApproved() bool { return m.Status == StatusApproved }
func (m *Member) IsRejected() bool { return m.Status == StatusRejected }

func (m *Member) HasPicture() bool { return m.PictureUploadedAt != nil }

// Leads reports whether the member is the leader of the given department.
func (m *Member) Leads(dept Department) bool {
	return m.ID != "" && dept.LeaderID == m.ID
}

// CanModerate reports whether actor may approve or reject target's
// registration: staff always can; a department leader can for members of
// their own department.
func CanModerate(actor Member, target Member, dept Department) bool {
	if actor.IsStaff {
		return true
	}
	return dept.ID != "" && dept.ID == target.DepartmentID && actor.Leads(dept)
}

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	LeaderID    string    `json:"leader_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// NewMember contains information needed to register a new Member.
type NewMember struct {
	RegNumber       string `json:"reg_number" validate:"required,regnumber"`
	FullName        string `json:"full_name" validate:"required,fullname"`
	Email           string `json:"email" validate:"required,email"`
	DepartmentID    string `json:"department_id" validate:"required"`
	CourseID        string `json:"course_id" validate:"omitempty"`
	CourseOther     string `json:"course_other" validate:"omitempty"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nm *NewMember) Clean() {
	nm.RegNumber = normalizeRegNumber(nm.RegNumber)
	nm.FullName = core.CleanString(nm.FullName)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.CourseOther = core.CleanString(nm.CourseOther)
}

func (nm *NewMember) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nm.Clean()
	if err := validate.Struct(nm); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nm.RegNumber, nm.Email)
}

// UpdateMember defines what information may be provided to modify an existing Member.
type UpdateMember struct {
	FullName        string `json:"full_name" validate:"omitempty,fullname"`
	CourseID        string `json:"course_id"`
	CourseOther     string `json:"course_other"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (um *UpdateMember) Validate(orig Member, validate *validator.Validate) error {
	name := core.CleanString(um.FullName)
	if name != "" {
		um.FullName = name
	} else {
		um.FullName = orig.FullName
	}
	um.CourseOther = core.CleanString(um.CourseOther)
	return validate.Struct(um)
}

type QueryFilter struct {
	Search         string    `query:"search"`
	Status         Status    `query:"status"`
	DepartmentID   string    `query:"department_id"`
	IsStaff        *bool     `query:"is_staff"`
	PictureMissing *bool     `query:"picture_missing"`
	RegisteredFrom time.Time `query:"registered_from"`
	RegisteredTo   time.Time `query:"registered_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.DepartmentID == "" &&
		qf.IsStaff == nil && qf.PictureMissing == nil &&
		qf.RegisteredFrom.IsZero() && qf.RegisteredTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single Member; the first non-empty field wins.
type GetFilter struct {
	ID               string
	RegNumber        string
	Email            string
	RegNumberOrEmail string
}
