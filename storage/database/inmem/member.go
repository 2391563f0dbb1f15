package inmemrepos

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/klabu/core"
	"github.com/trezcool/klabu/core/member"
)

// memberRepository keeps members in memory. For tests and local hacking.
type memberRepository struct {
	mu      sync.RWMutex
	members map[string]member.Member
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository() *memberRepository {
	return &memberRepository{members: make(map[string]member.Member)}
}

func (repo *memberRepository) CheckUniqueness(ctx context.Context, regNumber, email string, excluded ...member.Member) error {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	skip := make(map[string]struct{}, len(excluded))
	for _, m := range excluded {
		skip[m.ID] = struct{}{}
	}
	for _, m := range repo.members {
		if _, ok := skip[m.ID]; ok {
			continue
		}
		if m.RegNumber == regNumber {
			return member.ErrRegNumberExists
		}
		if strings.EqualFold(m.Email, email) {
			return member.ErrEmailExists
		}
	}
	return nil
}

func (repo *memberRepository) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	m.ID = uuid.New().String()
	repo.members[m.ID] = m
	return m, nil
}

func (repo *memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if filter.ID != "" {
		if m, ok := repo.members[filter.ID]; ok {
			return m, nil
		}
		return member.Member{}, member.ErrNotFound
	}
	for _, m := range repo.members {
		switch {
		case filter.RegNumber != "" && m.RegNumber == filter.RegNumber:
			return m, nil
		case filter.Email != "" && strings.EqualFold(m.Email, filter.Email):
			return m, nil
		case filter.RegNumberOrEmail != "" &&
			(m.RegNumber == filter.RegNumberOrEmail || strings.EqualFold(m.Email, filter.RegNumberOrEmail)):
			return m, nil
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering) ([]member.Member, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	members := make([]member.Member, 0, len(repo.members))
	for _, m := range repo.members {
		if matches(m, filter) {
			members = append(members, m)
		}
	}
	// newest first, like the DB default
	sort.Slice(members, func(i, j int) bool {
		return members[i].RegisteredAt.After(members[j].RegisteredAt)
	})
	return members, nil
}

func matches(m member.Member, filter *member.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(m.FullName), kw) &&
			!strings.Contains(strings.ToLower(m.RegNumber), kw) &&
			!strings.Contains(strings.ToLower(m.Email), kw) {
			return false
		}
	}
	if filter.Status != "" && m.Status != filter.Status {
		return false
	}
	if filter.DepartmentID != "" && m.DepartmentID != filter.DepartmentID {
		return false
	}
	if filter.IsStaff != nil && m.IsStaff != *filter.IsStaff {
		return false
	}
	if filter.PictureMissing != nil && m.HasPicture() == *filter.PictureMissing {
		return false
	}
	if !filter.RegisteredFrom.IsZero() && m.RegisteredAt.Before(filter.RegisteredFrom) {
		return false
	}
	if !filter.RegisteredTo.IsZero() && m.RegisteredAt.After(filter.RegisteredTo) {
		return false
	}
	return true
}

func (repo *memberRepository) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.members[m.ID]; !ok {
		return member.Member{}, member.ErrNotFound
	}
	repo.members[m.ID] = m
	return m, nil
}

func (repo *memberRepository) UpdateOrCreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	if m.ID == "" {
		return repo.CreateMember(ctx, m)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.members[m.ID] = m
	return m, nil
}
