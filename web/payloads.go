package web

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/academia"
	"github.com/goliatone/academia/docstore"
	"github.com/nyaruka/phonenumbers"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// LoginPayload is the sign in form.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterPayload is the sign up form. Password strength is left to the
// auth backend so its error reaches the user unchanged.
type RegisterPayload struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("El nombre es obligatorio"), validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// BookingPayload is the session request form. Every field is required.
type BookingPayload struct {
	FullName string `form:"full_name" json:"full_name"`
	Email    string `form:"email" json:"email"`
	Phone    string `form:"phone" json:"phone"`
	Date     string `form:"date" json:"date"`
	Time     string `form:"time" json:"time"`
	Reason   string `form:"reason" json:"reason"`
}

// Validate checks the payload against the phone numbering plan of region.
func (r BookingPayload) Validate(region string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, validation.Required, validation.By(phoneRule(region))),
		validation.Field(&r.Date, validation.Required, validation.Date(dateLayout)),
		validation.Field(&r.Time, validation.Required, validation.Date(timeLayout)),
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 2000)),
	)
}

// Booking converts the payload into a document for mentorID.
func (r BookingPayload) Booking(region string) *docstore.Booking {
	return &docstore.Booking{
		FullName: strings.TrimSpace(r.FullName),
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:    normalizePhone(r.Phone, region),
		Date:     r.Date,
		Time:     r.Time,
		Reason:   strings.TrimSpace(r.Reason),
	}
}

// MentorPayload is the admin mentor form. List fields are comma separated.
type MentorPayload struct {
	Name                string `form:"name" json:"name"`
	Email               string `form:"email" json:"email"`
	Phone               string `form:"phone" json:"phone"`
	PhotoURL            string `form:"photo_url" json:"photo_url"`
	Experience          string `form:"experience" json:"experience"`
	Title               string `form:"title" json:"title"`
	Status              string `form:"status" json:"status"`
	Languages           string `form:"languages" json:"languages"`
	Certificates        string `form:"certificates" json:"certificates"`
	Schedules           string `form:"schedules" json:"schedules"`
	AreaID              string `form:"area_id" json:"area_id"`
	PedagogicalMethodID string `form:"pedagogical_method_id" json:"pedagogical_method_id"`
}

// Validate will run validation rules
func (r MentorPayload) Validate(region string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Phone, validation.By(phoneRule(region))),
		validation.Field(&r.PhotoURL, is.URL),
		validation.Field(&r.Status, validation.Required, validation.In(
			string(docstore.MentorActive),
			string(docstore.MentorInactive),
		)),
	)
}

// Apply copies the payload onto m, keeping its id and photo when no new
// photo URL was given.
func (r MentorPayload) Apply(m *docstore.Mentor, region string) {
	m.User.Name = strings.TrimSpace(r.Name)
	m.User.Email = strings.ToLower(strings.TrimSpace(r.Email))
	m.User.Phone = normalizePhone(r.Phone, region)
	if photo := strings.TrimSpace(r.PhotoURL); photo != "" {
		m.User.Photo = photo
	}
	m.Experience = strings.TrimSpace(r.Experience)
	m.Title = strings.TrimSpace(r.Title)
	m.Status = docstore.MentorStatus(r.Status)
	m.Languages = splitList(r.Languages, ",")
	m.Certificates = splitList(r.Certificates, ",")
	m.Schedules = splitList(r.Schedules, ",")
	m.AreaID = strings.TrimSpace(r.AreaID)
	m.PedagogicalMethodID = strings.TrimSpace(r.PedagogicalMethodID)
}

// CoursePayload is the admin course form. Images are one URL per line,
// videos and pdfs one "url | title" pair per line.
type CoursePayload struct {
	Title       string `form:"title" json:"title"`
	Category    string `form:"category" json:"category"`
	Description string `form:"description" json:"description"`
	Status      string `form:"status" json:"status"`
	Images      string `form:"images" json:"images"`
	Videos      string `form:"videos" json:"videos"`
	PDFs        string `form:"pdfs" json:"pdfs"`
}

// Validate will run validation rules
func (r CoursePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Status, validation.Required, validation.In(
			string(docstore.CoursePublished),
			string(docstore.CourseDraft),
		)),
		validation.Field(&r.Images, validation.By(eachLine(is.URL))),
		validation.Field(&r.Videos, validation.By(mediaLines)),
		validation.Field(&r.PDFs, validation.By(mediaLines)),
	)
}

// Apply copies the payload onto c.
func (r CoursePayload) Apply(c *docstore.Course) {
	c.Title = strings.TrimSpace(r.Title)
	c.Category = strings.TrimSpace(r.Category)
	c.Description = strings.TrimSpace(r.Description)
	c.Status = docstore.CourseStatus(r.Status)
	c.Images = splitList(r.Images, "\n")
	c.Videos = parseMedia(r.Videos)
	c.PDFs = parseMedia(r.PDFs)
}

// RolePayload is the role change form on the users page.
type RolePayload struct {
	Role string `form:"role" json:"role"`
}

// Validate only accepts predefined roles.
func (r RolePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(
			string(academia.RoleApprentice),
			string(academia.RoleAdmin),
		)),
	)
}

// BookingStatusPayload moves a booking to a new status.
type BookingStatusPayload struct {
	Status string `form:"status" json:"status"`
}

// Validate will run validation rules
func (r BookingStatusPayload) Validate() error {
	statuses := make([]any, 0, len(docstore.BookingStatuses()))
	for _, st := range docstore.BookingStatuses() {
		statuses = append(statuses, string(st))
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(statuses...)),
	)
}

func phoneRule(region string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// normalizePhone formats valid numbers as E.164 and leaves anything else
// as typed.
func normalizePhone(s, region string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	num, err := phonenumbers.Parse(s, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func eachLine(rule validation.Rule) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		for _, line := range splitList(s, "\n") {
			if err := rule.Validate(line); err != nil {
				return err
			}
		}
		return nil
	}
}

func mediaLines(value interface{}) error {
	s, _ := value.(string)
	for _, m := range parseMedia(s) {
		if err := is.URL.Validate(m.URL); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseMedia(s string) []docstore.MediaLink {
	out := []docstore.MediaLink{}
	for _, line := range splitList(s, "\n") {
		url, title, _ := strings.Cut(line, "|")
		out = append(out, docstore.MediaLink{
			URL:   strings.TrimSpace(url),
			Title: strings.TrimSpace(title),
		})
	}
	return out
}

func joinMedia(links []docstore.MediaLink) string {
	lines := make([]string, 0, len(links))
	for _, l := range links {
		if l.Title == "" {
			lines = append(lines, l.URL)
			continue
		}
		lines = append(lines, l.URL+" | "+l.Title)
	}
	return strings.Join(lines, "\n")
}

// fieldErrors flattens ozzo errors for the templates.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}
	out["form"] = err.Error()
	return out
}
