package docstore

import (
	"context"

	"github.com/goliatone/academia"
	"github.com/google/uuid"
)

// CourseFilter narrows ListCourses. A zero Status lists everything.
type CourseFilter struct {
	Status CourseStatus
}

// ListCourses returns courses, newest first.
func (s *Store) ListCourses(ctx context.Context, caller academia.Caller, filter CourseFilter) ([]*Course, error) {
	if err := s.authorize(ctx, caller, CollectionCourses, OpList, "", nil); err != nil {
		return nil, err
	}
	var courses []*Course
	q := s.db().NewSelect().Model(&courses)
	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if err := q.OrderExpr("?TableAlias.created_at DESC").Scan(ctx); err != nil && !isNotFound(err) {
		return nil, err
	}
	return courses, nil
}

// GetCourse returns courses/{id}.
func (s *Store) GetCourse(ctx context.Context, caller academia.Caller, id string) (*Course, error) {
	if err := s.authorize(ctx, caller, CollectionCourses, OpGet, id, nil); err != nil {
		return nil, err
	}
	cid, err := parseID(CollectionCourses, id)
	if err != nil {
		return nil, err
	}
	return getByID(ctx, s.repos.Courses(), CollectionCourses, cid)
}

// CreateCourse stores c with a fresh id.
func (s *Store) CreateCourse(ctx context.Context, caller academia.Caller, c *Course) (*Course, error) {
	if err := s.authorize(ctx, caller, CollectionCourses, OpCreate, "", nil); err != nil {
		return nil, err
	}
	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = CourseDraft
	}
	c.CreatedAt = s.timestamp()
	c.UpdatedAt = c.CreatedAt
	return s.repos.Courses().Create(ctx, c)
}

// UpdateCourse replaces courses/{c.ID}, keeping its creation time.
func (s *Store) UpdateCourse(ctx context.Context, caller academia.Caller, c *Course) (*Course, error) {
	if err := s.authorize(ctx, caller, CollectionCourses, OpUpdate, c.ID.String(), nil); err != nil {
		return nil, err
	}
	existing, err := getByID(ctx, s.repos.Courses(), CollectionCourses, c.ID)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.timestamp()
	return replace(ctx, s.db(), c, CollectionCourses, c.ID)
}

// DeleteCourse removes courses/{id}.
func (s *Store) DeleteCourse(ctx context.Context, caller academia.Caller, id string) error {
	if err := s.authorize(ctx, caller, CollectionCourses, OpDelete, id, nil); err != nil {
		return err
	}
	cid, err := parseID(CollectionCourses, id)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, (*Course)(nil), CollectionCourses, cid)
}
