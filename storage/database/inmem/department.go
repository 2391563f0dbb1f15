package inmemrepos

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/klabu/core/member"
)

type departmentRepository struct {
	mu      sync.RWMutex
	depts   map[string]member.Department
	courses map[string]member.Course
}

var _ member.DepartmentRepository = (*departmentRepository)(nil) // interface compliance check

func NewDepartmentRepository() *departmentRepository {
	return &departmentRepository{
		depts:   make(map[string]member.Department),
		courses: make(map[string]member.Course),
	}
}

func (repo *departmentRepository) CreateDepartment(ctx context.Context, d member.Department) (member.Department, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	d.ID = uuid.New().String()
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	repo.depts[d.ID] = d
	return d, nil
}

func (repo *departmentRepository) GetDepartment(ctx context.Context, filter member.DepartmentFilter) (member.Department, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if filter.ID != "" {
		if d, ok := repo.depts[filter.ID]; ok {
			return d, nil
		}
		return member.Department{}, member.ErrDepartmentNotFound
	}
	for _, d := range repo.depts {
		switch {
		case filter.Slug != "" && d.Slug == filter.Slug:
			return d, nil
		case filter.Name != "" && strings.EqualFold(d.Name, filter.Name):
			return d, nil
		}
	}
	return member.Department{}, member.ErrDepartmentNotFound
}

func (repo *departmentRepository) QueryDepartments(ctx context.Context) ([]member.Department, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	depts := make([]member.Department, 0, len(repo.depts))
	for _, d := range repo.depts {
		depts = append(depts, d)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Name < depts[j].Name })
	return depts, nil
}

func (repo *departmentRepository) UpdateDepartment(ctx context.Context, d member.Department) (member.Department, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.depts[d.ID]; !ok {
		return member.Department{}, member.ErrDepartmentNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	repo.depts[d.ID] = d
	return d, nil
}

func (repo *departmentRepository) GetCourse(ctx context.Context, id string) (member.Course, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if c, ok := repo.courses[id]; ok {
		return c, nil
	}
	return member.Course{}, member.ErrCourseNotFound
}

func (repo *departmentRepository) QueryCourses(ctx context.Context) ([]member.Course, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	courses := make([]member.Course, 0, len(repo.courses))
	for _, c := range repo.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (repo *departmentRepository) CreateCourse(ctx context.Context, c member.Course) (member.Course, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	c.ID = uuid.New().String()
	repo.courses[c.ID] = c
	return c, nil
}
