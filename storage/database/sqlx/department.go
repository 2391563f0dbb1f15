package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klabu/core/member"
)

type departmentRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Slug        string      `db:"slug"`
	Description null.String `db:"description"`
	LeaderID    null.String `db:"leader_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func packDepartment(d member.Department) departmentRow {
	return departmentRow{
		ID:          d.ID,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: null.NewString(d.Description, d.Description != ""),
		LeaderID:    null.NewString(d.LeaderID, d.LeaderID != ""),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func unpackDepartment(row departmentRow) member.Department {
	return member.Department{
		ID:          row.ID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description.String,
		LeaderID:    row.LeaderID.String,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type courseRow struct {
	ID   string      `db:"id"`
	Name string      `db:"name"`
	Code null.String `db:"code"`
}

func packCourse(c member.Course) courseRow {
	return courseRow{
		ID:   c.ID,
		Name: c.Name,
		Code: null.NewString(c.Code, c.Code != ""),
	}
}

func unpackCourse(row courseRow) member.Course {
	return member.Course{ID: row.ID, Name: row.Name, Code: row.Code.String}
}

type departmentRepository struct {
	db *sqlx.DB
}

var _ member.DepartmentRepository = (*departmentRepository)(nil) // interface compliance check

func NewDepartmentRepository(db *sqlx.DB) *departmentRepository {
	return &departmentRepository{db: db}
}

// trapNoDeptErr maps psql "no rows" err to member.ErrDepartmentNotFound
func trapNoDeptErr(err error, msg string, notFound error) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo departmentRepository) CreateDepartment(ctx context.Context, d member.Department) (member.Department, error) {
	d.ID = uuid.New().String()
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	query := `
INSERT INTO department (id, name, slug, description, leader_id, created_at, updated_at)
VALUES (:id, :name, :slug, :description, :leader_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, packDepartment(d)); err != nil {
		return member.Department{}, errors.Wrap(err, "inserting department")
	}
	return d, nil
}

func (repo departmentRepository) GetDepartment(ctx context.Context, filter member.DepartmentFilter) (member.Department, error) {
	query := `SELECT * FROM department WHERE `
	var arg interface{}
	switch {
	case filter.ID != "":
		query += `id = $1`
		arg = filter.ID
	case filter.Slug != "":
		query += `slug = $1`
		arg = filter.Slug
	case filter.Name != "":
		query += `name ILIKE $1`
		arg = filter.Name
	default:
		return member.Department{}, member.ErrDepartmentNotFound
	}

	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		return member.Department{}, trapNoDeptErr(err, "getting department", member.ErrDepartmentNotFound)
	}
	return unpackDepartment(row), nil
}

func (repo departmentRepository) QueryDepartments(ctx context.Context) ([]member.Department, error) {
	var rows []departmentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM department ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	depts := make([]member.Department, 0, len(rows))
	for _, row := range rows {
		depts = append(depts, unpackDepartment(row))
	}
	return depts, nil
}

func (repo departmentRepository) UpdateDepartment(ctx context.Context, d member.Department) (member.Department, error) {
	d.UpdatedAt = time.Now().UTC()
	query := `
UPDATE department SET
	name = :name, slug = :slug, description = :description, leader_id = :leader_id, updated_at = :updated_at
WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, packDepartment(d))
	if err != nil {
		return member.Department{}, errors.Wrap(err, "updating department")
	}
	if n, err := res.RowsAffected(); err != nil {
		return member.Department{}, errors.Wrap(err, "updating department")
	} else if n == 0 {
		return member.Department{}, member.ErrDepartmentNotFound
	}
	return d, nil
}

func (repo departmentRepository) GetCourse(ctx context.Context, id string) (member.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		return member.Course{}, trapNoDeptErr(err, "getting course", member.ErrCourseNotFound)
	}
	return unpackCourse(row), nil
}

func (repo departmentRepository) QueryCourses(ctx context.Context) ([]member.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM course ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]member.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, unpackCourse(row))
	}
	return courses, nil
}

func (repo departmentRepository) CreateCourse(ctx context.Context, c member.Course) (member.Course, error) {
	c.ID = uuid.New().String()
	query := `INSERT INTO course (id, name, code) VALUES (:id, :name, :code)`
	if _, err := repo.db.NamedExecContext(ctx, query, packCourse(c)); err != nil {
		return member.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}
