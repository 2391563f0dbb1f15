package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
)

type memberRow struct {
	ID                string      `db:"id"`
	RegNumber         string      `db:"reg_number"`
	FullName          string      `db:"full_name"`
	Email             string      `db:"email"`
	DepartmentID      string      `db:"department_id"`
	CourseID          null.String `db:"course_id"`
	CourseOther       null.String `db:"course_other"`
	Status            string      `db:"status"`
	IsStaff           bool        `db:"is_staff"`
	PasswordHash      []byte      `db:"password_hash"`
	RegisteredAt      time.Time   `db:"registered_at"`
	ApprovedAt        null.Time   `db:"approved_at"`
	PictureUploadedAt null.Time   `db:"picture_uploaded_at"`
	LastLogin         null.Time   `db:"last_login"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func packMember(m member.Member) memberRow {
	return memberRow{
		ID:                m.ID,
		RegNumber:         m.RegNumber,
		FullName:          m.FullName,
		Email:             m.Email,
		DepartmentID:      m.DepartmentID,
		CourseID:          null.NewString(m.CourseID, m.CourseID != ""),
		CourseOther:       null.NewString(m.CourseOther, m.CourseOther != ""),
		Status:            string(m.Status),
		IsStaff:           m.IsStaff,
		PasswordHash:      m.PasswordHash,
		RegisteredAt:      m.RegisteredAt.UTC(),
		ApprovedAt:        null.TimeFromPtr(m.ApprovedAt),
		PictureUploadedAt: null.TimeFromPtr(m.PictureUploadedAt),
		LastLogin:         null.NewTime(m.LastLogin.UTC(), !m.LastLogin.IsZero()),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func unpackMember(row memberRow) member.Member {
	return member.Member{
		ID:                row.ID,
		RegNumber:         row.RegNumber,
		FullName:          row.FullName,
		Email:             row.Email,
		DepartmentID:      row.DepartmentID,
		CourseID:          row.CourseID.String,
		CourseOther:       row.CourseOther.String,
		Status:            member.Status(row.Status),
		IsStaff:           row.IsStaff,
		PasswordHash:      row.PasswordHash,
		RegisteredAt:      row.RegisteredAt,
		ApprovedAt:        row.ApprovedAt.Ptr(),
		PictureUploadedAt: row.PictureUploadedAt.Ptr(),
		LastLogin:         row.LastLogin.Time,
		UpdatedAt:         row.UpdatedAt,
	}
}

func unpackMembers(rows []memberRow) []member.Member {
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, unpackMember(row))
	}
	return members
}

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to member.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return member.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo memberRepository) CheckUniqueness(ctx context.Context, regNumber, email string, excluded ...member.Member) error {
	query := `SELECT reg_number, email FROM "member" WHERE (reg_number = ? OR email = ?)`
	args := []interface{}{regNumber, email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, m := range excluded {
			ids = append(ids, m.ID)
		}
		inQuery, inArgs, err := sqlx.In(` AND id NOT IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "checking member uniqueness")
		}
		query += inQuery
		args = append(args, inArgs...)
	}

	var rows []struct {
		RegNumber string `db:"reg_number"`
		Email     string `db:"email"`
	}
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking member uniqueness")
	}
	for _, row := range rows {
		if row.RegNumber == regNumber {
			return member.ErrRegNumberExists
		}
	}
	if len(rows) > 0 {
		return member.ErrEmailExists
	}
	return nil
}

const memberInsertQuery = `
INSERT INTO "member" (
	id, reg_number, full_name, email, department_id, course_id, course_other, status,
	is_staff, password_hash, registered_at, approved_at, picture_uploaded_at, last_login, updated_at
) VALUES (
	:id, :reg_number, :full_name, :email, :department_id, :course_id, :course_other, :status,
	:is_staff, :password_hash, :registered_at, :approved_at, :picture_uploaded_at, :last_login, :updated_at
)`

func (repo memberRepository) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	m.ID = uuid.New().String()
	if _, err := repo.db.NamedExecContext(ctx, memberInsertQuery, packMember(m)); err != nil {
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return m, nil
}

func (repo memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	query := `SELECT * FROM "member" WHERE `
	var arg interface{}
	switch {
	case filter.ID != "":
		query += `id = $1`
		arg = filter.ID
	case filter.RegNumber != "":
		query += `reg_number = $1`
		arg = filter.RegNumber
	case filter.Email != "":
		query += `email = $1`
		arg = filter.Email
	case filter.RegNumberOrEmail != "":
		query += `(reg_number = $1 OR email = $1)`
		arg = filter.RegNumberOrEmail
	default:
		return member.Member{}, member.ErrNotFound
	}

	var row memberRow
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		return member.Member{}, trapNoRowsErr(err, "getting member")
	}
	return unpackMember(row), nil
}

func (repo memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering) ([]member.Member, error) {
	query := `SELECT * FROM "member"`
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// members with FullName, RegNumber or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, `(full_name ILIKE ? OR reg_number ILIKE ? OR email ILIKE ?)`)
			args = append(args, val, val, val)
		}
		if filter.Status != "" {
			where = append(where, `status = ?`)
			args = append(args, string(filter.Status))
		}
		if filter.DepartmentID != "" {
			where = append(where, `department_id = ?`)
			args = append(args, filter.DepartmentID)
		}
		if filter.IsStaff != nil {
			where = append(where, `is_staff = ?`)
			args = append(args, *filter.IsStaff)
		}
		if filter.PictureMissing != nil {
			if *filter.PictureMissing {
				where = append(where, `picture_uploaded_at IS NULL`)
			} else {
				where = append(where, `picture_uploaded_at IS NOT NULL`)
			}
		}
		if !filter.RegisteredFrom.IsZero() {
			where = append(where, `registered_at >= ?`)
			args = append(args, filter.RegisteredFrom.UTC())
		}
		if !filter.RegisteredTo.IsZero() {
			where = append(where, `registered_at <= ?`)
			args = append(args, filter.RegisteredTo.UTC())
		}
	}

	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += ` ORDER BY ` + strings.Join(orderList, ", ")
	} else {
		query += ` ORDER BY registered_at DESC`
	}

	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return unpackMembers(rows), nil
}

const memberUpdateQuery = `
UPDATE "member" SET
	reg_number = :reg_number,
	full_name = :full_name,
	email = :email,
	department_id = :department_id,
	course_id = :course_id,
	course_other = :course_other,
	status = :status,
	is_staff = :is_staff,
	password_hash = :password_hash,
	approved_at = :approved_at,
	picture_uploaded_at = :picture_uploaded_at,
	last_login = :last_login,
	updated_at = :updated_at
WHERE id = :id`

func (repo memberRepository) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	res, err := repo.db.NamedExecContext(ctx, memberUpdateQuery, packMember(m))
	if err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	}
	if n, err := res.RowsAffected(); err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	} else if n == 0 {
		return member.Member{}, member.ErrNotFound
	}
	return m, nil
}

func (repo memberRepository) UpdateOrCreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	if m.ID == "" {
		return repo.CreateMember(ctx, m)
	}
	updated, err := repo.UpdateMember(ctx, m)
	if err == member.ErrNotFound {
		if _, err = repo.db.NamedExecContext(ctx, memberInsertQuery, packMember(m)); err != nil {
			return member.Member{}, errors.Wrap(err, "inserting member")
		}
		return m, nil
	}
	return updated, err
}
