package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/academia"
	"github.com/google/uuid"
)

// BookingFilter narrows ListBookings. Search matches the student name,
// email and reason, case insensitive.
type BookingFilter struct {
	Search string
	Status BookingStatus
}

// Matches applies the filter to a single booking.
func (f BookingFilter) Matches(b *Booking) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	for _, v := range []string{b.FullName, b.Email, b.Reason} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// CreateBooking stores a pending booking for caller against b.MentorID.
// The mentor name is copied from the mentor document.
func (s *Store) CreateBooking(ctx context.Context, caller academia.Caller, b *Booking) (*Booking, error) {
	b.UserID = caller.UID
	b.Status = BookingPending
	fields := map[string]any{
		"user_id":   b.UserID,
		"status":    string(b.Status),
		"mentor_id": b.MentorID.String(),
	}
	if err := s.authorize(ctx, caller, CollectionBookings, OpCreate, "", fields); err != nil {
		return nil, err
	}

	mentor, err := getByID(ctx, s.repos.Mentors(), CollectionMentors, b.MentorID)
	if err != nil {
		return nil, err
	}

	b.ID = uuid.New()
	b.MentorName = mentor.User.Name
	b.CreatedAt = s.timestamp()
	b.UpdatedAt = b.CreatedAt
	return s.repos.Bookings().Create(ctx, b)
}

// ListBookings returns bookings matching filter, newest first.
func (s *Store) ListBookings(ctx context.Context, caller academia.Caller, filter BookingFilter) ([]*Booking, error) {
	if err := s.authorize(ctx, caller, CollectionBookings, OpList, "", nil); err != nil {
		return nil, err
	}

	var bookings []*Booking
	q := s.db().NewSelect().Model(&bookings)
	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if err := q.OrderExpr("?TableAlias.created_at DESC").Scan(ctx); err != nil && !isNotFound(err) {
		return nil, err
	}

	// search terms are literal text, so they are matched here rather than
	// with LIKE, where _ and % are wildcards
	matched := bookings[:0]
	for _, b := range bookings {
		if filter.Matches(b) {
			matched = append(matched, b)
		}
	}
	return matched, nil
}

// GetBooking returns bookings/{id}.
func (s *Store) GetBooking(ctx context.Context, caller academia.Caller, id string) (*Booking, error) {
	if err := s.authorize(ctx, caller, CollectionBookings, OpGet, id, nil); err != nil {
		return nil, err
	}
	bid, err := parseID(CollectionBookings, id)
	if err != nil {
		return nil, err
	}
	return getByID(ctx, s.repos.Bookings(), CollectionBookings, bid)
}

// SetBookingStatus moves bookings/{id} to status.
func (s *Store) SetBookingStatus(ctx context.Context, caller academia.Caller, id string, status BookingStatus) (*Booking, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown booking status %q", academia.ErrValidation, status)
	}
	if err := s.authorize(ctx, caller, CollectionBookings, OpUpdate, id, map[string]any{"status": string(status)}); err != nil {
		return nil, err
	}
	bid, err := parseID(CollectionBookings, id)
	if err != nil {
		return nil, err
	}

	res, err := s.db().NewUpdate().
		Model((*Booking)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", s.timestamp()).
		Where("id = ?", bid).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, notFound(CollectionBookings, id)
	}
	return getByID(ctx, s.repos.Bookings(), CollectionBookings, bid)
}

// DeleteBooking removes bookings/{id}.
func (s *Store) DeleteBooking(ctx context.Context, caller academia.Caller, id string) error {
	if err := s.authorize(ctx, caller, CollectionBookings, OpDelete, id, nil); err != nil {
		return err
	}
	bid, err := parseID(CollectionBookings, id)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, (*Booking)(nil), CollectionBookings, bid)
}
