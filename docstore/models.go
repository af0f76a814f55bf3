package docstore

import (
	"strings"
	"time"

	"github.com/goliatone/academia"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profile is the users/{uid} document.
type Profile struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	Name          string        `bun:"name,notnull" json:"name"`
	Email         string        `bun:"email,notnull" json:"email"`
	Phone         string        `bun:"phone" json:"phone,omitempty"`
	Role          academia.Role `bun:"role,notnull" json:"role"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Document converts the record to the core profile type.
func (p *Profile) Document() *academia.ProfileDocument {
	doc := &academia.ProfileDocument{
		UID:   p.ID.String(),
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
		Role:  p.Role,
	}
	if p.CreatedAt != nil {
		doc.CreatedAt = *p.CreatedAt
	}
	return doc
}

// MentorStatus is shown on the public mentor listing.
type MentorStatus string

const (
	MentorActive   MentorStatus = "Activo"
	MentorInactive MentorStatus = "Inactivo"
)

// MentorUser holds the contact card of a mentor.
type MentorUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Photo string `json:"photo"`
}

// Initial is used for the placeholder avatar when there is no photo.
func (u MentorUser) Initial() string {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

// Mentor is a mentors/{id} document.
type Mentor struct {
	bun.BaseModel       `bun:"table:mentors,alias:mnt"`
	ID                  uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	User                MentorUser   `bun:"user,type:jsonb" json:"user"`
	Experience          string       `bun:"experience" json:"experience"`
	Title               string       `bun:"title" json:"title"`
	Status              MentorStatus `bun:"status,notnull" json:"status"`
	Languages           []string     `bun:"languages,type:jsonb" json:"languages"`
	Certificates        []string     `bun:"certificates,type:jsonb" json:"certificates"`
	Schedules           []string     `bun:"schedules,type:jsonb" json:"schedules"`
	AreaID              string       `bun:"area_id" json:"area_id"`
	PedagogicalMethodID string       `bun:"pedagogical_method_id" json:"pedagogical_method_id"`
	CreatedAt           *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// CourseStatus controls whether a course is listed publicly.
type CourseStatus string

const (
	CoursePublished CourseStatus = "Publicado"
	CourseDraft     CourseStatus = "Borrador"
)

// MediaLink is a titled video or document link.
type MediaLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Course is a courses/{id} document.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:crs"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	Title         string       `bun:"title,notnull" json:"title"`
	Category      string       `bun:"category" json:"category"`
	Description   string       `bun:"description" json:"description"`
	Status        CourseStatus `bun:"status,notnull" json:"status"`
	Images        []string     `bun:"images,type:jsonb" json:"images"`
	Videos        []MediaLink  `bun:"videos,type:jsonb" json:"videos"`
	PDFs          []MediaLink  `bun:"pdfs,type:jsonb" json:"pdfs"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BookingStatus is the lifecycle of a booking request.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pendiente"
	BookingAccepted  BookingStatus = "Aceptado"
	BookingRejected  BookingStatus = "Rechazado"
	BookingCancelled BookingStatus = "Cancelado"
	BookingCompleted BookingStatus = "Completado"
)

// BookingStatuses lists every status in display order.
func BookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingPending,
		BookingAccepted,
		BookingRejected,
		BookingCancelled,
		BookingCompleted,
	}
}

// IsValid checks the status is one of BookingStatuses.
func (s BookingStatus) IsValid() bool {
	for _, v := range BookingStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Booking is a bookings/{id} document.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:bkg"`
	ID            uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	MentorID      uuid.UUID     `bun:"mentor_id,type:uuid,notnull" json:"mentor_id"`
	MentorName    string        `bun:"mentor_name" json:"mentor_name"`
	UserID        string        `bun:"user_id,notnull" json:"user_id"`
	FullName      string        `bun:"full_name,notnull" json:"full_name"`
	Email         string        `bun:"email,notnull" json:"email"`
	Phone         string        `bun:"phone,notnull" json:"phone"`
	Date          string        `bun:"date,notnull" json:"date"`
	Time          string        `bun:"time,notnull" json:"time"`
	Reason        string        `bun:"reason,notnull" json:"reason"`
	Status        BookingStatus `bun:"status,notnull" json:"status"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
