package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/academia"
	"github.com/uptrace/bun"
)

var _ academia.ProfileStore = (*Store)(nil)

// ReadProfile implements academia.ProfileReader.
func (s *Store) ReadProfile(ctx context.Context, caller academia.Caller, uid string) (*academia.ProfileDocument, error) {
	p, err := s.GetProfile(ctx, caller, uid)
	if err != nil {
		return nil, err
	}
	return p.Document(), nil
}

// GetProfile returns users/{uid}.
func (s *Store) GetProfile(ctx context.Context, caller academia.Caller, uid string) (*Profile, error) {
	if err := s.authorize(ctx, caller, CollectionUsers, OpGet, uid, nil); err != nil {
		return nil, err
	}
	id, err := parseID(CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	return getByID(ctx, s.repos.Profiles(), CollectionUsers, id)
}

// CreateProfile implements academia.ProfileStore. It returns
// academia.ErrAlreadyExists if the document is already there.
func (s *Store) CreateProfile(ctx context.Context, caller academia.Caller, doc academia.ProfileDocument) error {
	fields := map[string]any{
		"name":  doc.Name,
		"email": doc.Email,
		"role":  string(doc.Role),
	}
	if err := s.authorize(ctx, caller, CollectionUsers, OpCreate, doc.UID, fields); err != nil {
		return err
	}
	id, err := parseID(CollectionUsers, doc.UID)
	if err != nil {
		return err
	}

	record := &Profile{
		ID:        id,
		Name:      strings.TrimSpace(doc.Name),
		Email:     strings.ToLower(strings.TrimSpace(doc.Email)),
		Phone:     doc.Phone,
		Role:      doc.Role,
		CreatedAt: s.timestamp(),
		UpdatedAt: s.timestamp(),
	}
	if !doc.CreatedAt.IsZero() {
		createdAt := doc.CreatedAt.UTC()
		record.CreatedAt = &createdAt
	}

	return s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*Profile)(nil)).Where("id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s/%s", academia.ErrAlreadyExists, CollectionUsers, doc.UID)
		}
		_, err = s.repos.Profiles().CreateTx(ctx, tx, record)
		return err
	})
}

// ListProfiles returns every profile, newest first.
func (s *Store) ListProfiles(ctx context.Context, caller academia.Caller) ([]*Profile, error) {
	if err := s.authorize(ctx, caller, CollectionUsers, OpList, "", nil); err != nil {
		return nil, err
	}
	var profiles []*Profile
	err := s.db().NewSelect().Model(&profiles).OrderExpr("?TableAlias.created_at DESC").Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return profiles, nil
}

// SetRole changes the role on users/{uid}. This is an operator action.
func (s *Store) SetRole(ctx context.Context, caller academia.Caller, uid string, role academia.Role) (*Profile, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", academia.ErrValidation, role)
	}
	if err := s.authorize(ctx, caller, CollectionUsers, OpUpdate, uid, map[string]any{"role": string(role)}); err != nil {
		return nil, err
	}
	id, err := parseID(CollectionUsers, uid)
	if err != nil {
		return nil, err
	}

	res, err := s.db().NewUpdate().
		Model((*Profile)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", s.timestamp()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, notFound(CollectionUsers, uid)
	}
	return getByID(ctx, s.repos.Profiles(), CollectionUsers, id)
}

// DeleteProfile removes users/{uid}.
func (s *Store) DeleteProfile(ctx context.Context, caller academia.Caller, uid string) error {
	if err := s.authorize(ctx, caller, CollectionUsers, OpDelete, uid, nil); err != nil {
		return err
	}
	id, err := parseID(CollectionUsers, uid)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, (*Profile)(nil), CollectionUsers, id)
}
