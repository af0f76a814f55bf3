package docstore

import (
	"context"

	"github.com/goliatone/academia"
	"github.com/google/uuid"
)

// MentorFilter narrows ListMentors. A zero Status lists everything.
type MentorFilter struct {
	Status MentorStatus
}

// ListMentors returns mentors ordered by name.
func (s *Store) ListMentors(ctx context.Context, caller academia.Caller, filter MentorFilter) ([]*Mentor, error) {
	if err := s.authorize(ctx, caller, CollectionMentors, OpList, "", nil); err != nil {
		return nil, err
	}
	var mentors []*Mentor
	q := s.db().NewSelect().Model(&mentors)
	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if err := q.OrderExpr("json_extract(?TableAlias.\"user\", '$.name') ASC").Scan(ctx); err != nil && !isNotFound(err) {
		return nil, err
	}
	return mentors, nil
}

// GetMentor returns mentors/{id}.
func (s *Store) GetMentor(ctx context.Context, caller academia.Caller, id string) (*Mentor, error) {
	if err := s.authorize(ctx, caller, CollectionMentors, OpGet, id, nil); err != nil {
		return nil, err
	}
	mid, err := parseID(CollectionMentors, id)
	if err != nil {
		return nil, err
	}
	return getByID(ctx, s.repos.Mentors(), CollectionMentors, mid)
}

// CreateMentor stores m with a fresh id.
func (s *Store) CreateMentor(ctx context.Context, caller academia.Caller, m *Mentor) (*Mentor, error) {
	if err := s.authorize(ctx, caller, CollectionMentors, OpCreate, "", nil); err != nil {
		return nil, err
	}
	m.ID = uuid.New()
	if m.Status == "" {
		m.Status = MentorActive
	}
	m.CreatedAt = s.timestamp()
	m.UpdatedAt = m.CreatedAt
	return s.repos.Mentors().Create(ctx, m)
}

// UpdateMentor replaces mentors/{m.ID}, keeping its creation time.
func (s *Store) UpdateMentor(ctx context.Context, caller academia.Caller, m *Mentor) (*Mentor, error) {
	if err := s.authorize(ctx, caller, CollectionMentors, OpUpdate, m.ID.String(), nil); err != nil {
		return nil, err
	}
	existing, err := getByID(ctx, s.repos.Mentors(), CollectionMentors, m.ID)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = s.timestamp()
	return replace(ctx, s.db(), m, CollectionMentors, m.ID)
}

// DeleteMentor removes mentors/{id}.
func (s *Store) DeleteMentor(ctx context.Context, caller academia.Caller, id string) error {
	if err := s.authorize(ctx, caller, CollectionMentors, OpDelete, id, nil); err != nil {
		return err
	}
	mid, err := parseID(CollectionMentors, id)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, (*Mentor)(nil), CollectionMentors, mid)
}
