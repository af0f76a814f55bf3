package docstore

import (
	"context"
	"database/sql"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	DB() *bun.DB
	Profiles() repository.Repository[*Profile]
	Mentors() repository.Repository[*Mentor]
	Courses() repository.Repository[*Course]
	Bookings() repository.Repository[*Booking]
}

func NewProfilesRepository(db *bun.DB) repository.Repository[*Profile] {
	return repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

func NewMentorsRepository(db *bun.DB) repository.Repository[*Mentor] {
	return repository.NewRepository[*Mentor](db, repository.ModelHandlers[*Mentor]{
		NewRecord: func() *Mentor { return &Mentor{} },
		GetID: func(m *Mentor) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *Mentor, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})
}

func NewCoursesRepository(db *bun.DB) repository.Repository[*Course] {
	return repository.NewRepository[*Course](db, repository.ModelHandlers[*Course]{
		NewRecord: func() *Course { return &Course{} },
		GetID: func(c *Course) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Course, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})
}

func NewBookingsRepository(db *bun.DB) repository.Repository[*Booking] {
	return repository.NewRepository[*Booking](db, repository.ModelHandlers[*Booking]{
		NewRecord: func() *Booking { return &Booking{} },
		GetID: func(b *Booking) uuid.UUID {
			if b == nil {
				return uuid.Nil
			}
			return b.ID
		},
		SetID: func(b *Booking, id uuid.UUID) {
			if b != nil {
				b.ID = id
			}
		},
	})
}

type mngr struct {
	db       *bun.DB
	profiles repository.Repository[*Profile]
	mentors  repository.Repository[*Mentor]
	courses  repository.Repository[*Course]
	bookings repository.Repository[*Booking]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		profiles: NewProfilesRepository(db),
		mentors:  NewMentorsRepository(db),
		courses:  NewCoursesRepository(db),
		bookings: NewBookingsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized", errors.CategoryInternal)
	}
	if m.profiles == nil {
		return errors.New("repository profiles should be initialized", errors.CategoryInternal)
	}
	if m.mentors == nil {
		return errors.New("repository mentors should be initialized", errors.CategoryInternal)
	}
	if m.courses == nil {
		return errors.New("repository courses should be initialized", errors.CategoryInternal)
	}
	if m.bookings == nil {
		return errors.New("repository bookings should be initialized", errors.CategoryInternal)
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Profiles() repository.Repository[*Profile] {
	return m.profiles
}

func (m mngr) Mentors() repository.Repository[*Mentor] {
	return m.mentors
}

func (m mngr) Courses() repository.Repository[*Course] {
	return m.courses
}

func (m mngr) Bookings() repository.Repository[*Booking] {
	return m.bookings
}
