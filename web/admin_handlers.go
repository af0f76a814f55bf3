package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/academia"
	"github.com/goliatone/academia/blob"
	"github.com/goliatone/academia/docstore"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const statusAll = "Todos"

func (s *Server) adminUsers(c *fiber.Ctx) error {
	profiles, err := s.docs.ListProfiles(c.UserContext(), callerFrom(c))
	if err != nil {
		return err
	}
	return c.Render("admin_users", s.view(c, fiber.Map{
		"title":    "Usuarios",
		"profiles": profiles,
		"roles":    academia.GetAllRoles(),
		"self":     callerFrom(c).UID,
	}))
}

// adminUserRole is the only place a role is ever raised.
func (s *Server) adminUserRole(c *fiber.Ctx) error {
	payload := new(RolePayload)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %v", academia.ErrValidation, err)
	}

	ctx := c.UserContext()
	caller := callerFrom(c)
	role := academia.Role(payload.Role)
	profile, err := s.docs.SetRole(ctx, caller, c.Params("uid"), role)
	if err != nil {
		return err
	}

	if err := s.sink.Record(ctx, academia.ActivityEvent{
		EventType:  academia.ActivityEventRoleChanged,
		UserID:     profile.ID.String(),
		Email:      profile.Email,
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"role":       string(role),
			"changed_by": caller.UID,
		},
	}); err != nil {
		s.logger.Warn("record role change", "error", err)
	}
	return c.Redirect("/admin/usuarios", fiber.StatusSeeOther)
}

func (s *Server) adminUserDelete(c *fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == callerFrom(c).UID {
		return fmt.Errorf("%w: cannot delete your own profile", academia.ErrValidation)
	}
	if err := s.docs.DeleteProfile(c.UserContext(), callerFrom(c), uid); err != nil {
		return err
	}
	return c.Redirect("/admin/usuarios", fiber.StatusSeeOther)
}

func (s *Server) adminMentors(c *fiber.Ctx) error {
	mentors, err := s.docs.ListMentors(c.UserContext(), callerFrom(c), docstore.MentorFilter{})
	if err != nil {
		return err
	}
	return c.Render("admin_mentors", s.view(c, fiber.Map{
		"title":   "Mentores",
		"mentors": mentors,
	}))
}

func (s *Server) renderMentorForm(c *fiber.Ctx, status int, mentor *docstore.Mentor, record *MentorPayload, errs map[string]string) error {
	return c.Status(status).Render("admin_mentor_form", s.view(c, fiber.Map{
		"title":    "Mentor",
		"mentor":   mentor,
		"record":   record,
		"errors":   errs,
		"statuses": []string{string(docstore.MentorActive), string(docstore.MentorInactive)},
	}))
}

func (s *Server) adminMentorForm(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return s.renderMentorForm(c, fiber.StatusOK, nil, &MentorPayload{Status: string(docstore.MentorActive)}, nil)
	}
	mentor, err := s.docs.GetMentor(c.UserContext(), callerFrom(c), id)
	if err != nil {
		return err
	}
	return s.renderMentorForm(c, fiber.StatusOK, mentor, mentorRecord(mentor), nil)
}

func mentorRecord(m *docstore.Mentor) *MentorPayload {
	return &MentorPayload{
		Name:                m.User.Name,
		Email:               m.User.Email,
		Phone:               m.User.Phone,
		PhotoURL:            m.User.Photo,
		Experience:          m.Experience,
		Title:               m.Title,
		Status:              string(m.Status),
		Languages:           strings.Join(m.Languages, ", "),
		Certificates:        strings.Join(m.Certificates, ", "),
		Schedules:           strings.Join(m.Schedules, ", "),
		AreaID:              m.AreaID,
		PedagogicalMethodID: m.PedagogicalMethodID,
	}
}

// adminMentorSave creates or updates a mentor. An uploaded photo wins over
// the photo URL field. The upload is removed again if the save fails, and
// a replaced photo owned by the blob store is removed after it succeeds.
func (s *Server) adminMentorSave(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerFrom(c)

	mentor := &docstore.Mentor{}
	if id := c.Params("id"); id != "" {
		existing, err := s.docs.GetMentor(ctx, caller, id)
		if err != nil {
			return err
		}
		mentor = existing
	}
	previousPhoto := mentor.User.Photo

	payload := new(MentorPayload)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}
	region := s.cfg.Server.PhoneRegion
	if err := payload.Validate(region); err != nil {
		return s.renderMentorForm(c, fiber.StatusUnprocessableEntity, nilIfNew(mentor), payload, fieldErrors(err))
	}
	payload.Apply(mentor, region)

	uploaded, err := s.uploadPhoto(ctx, c)
	if err != nil {
		return s.renderMentorForm(c, statusFor(err), nilIfNew(mentor), payload, map[string]string{
			"photo": academia.ErrorMessage(err),
		})
	}
	if uploaded != "" {
		mentor.User.Photo = uploaded
	}

	if mentor.ID == uuid.Nil {
		_, err = s.docs.CreateMentor(ctx, caller, mentor)
	} else {
		_, err = s.docs.UpdateMentor(ctx, caller, mentor)
	}
	if err != nil {
		s.removePhoto(ctx, uploaded)
		return err
	}

	if previousPhoto != "" && previousPhoto != mentor.User.Photo {
		s.removePhoto(ctx, previousPhoto)
	}
	return c.Redirect("/admin/mentores", fiber.StatusSeeOther)
}

func nilIfNew(m *docstore.Mentor) *docstore.Mentor {
	if m.ID == uuid.Nil {
		return nil
	}
	return m
}

func (s *Server) uploadPhoto(ctx context.Context, c *fiber.Ctx) (string, error) {
	fh, err := c.FormFile("photo")
	if noFile(err) {
		return "", nil
	}
	if err != nil {
		s.logger.Warn("read mentor photo", "error", err)
		return "", fiber.NewError(fiber.StatusBadRequest, "No se pudo leer la foto")
	}
	if fh.Size == 0 {
		return "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	url, err := s.blobs.Upload(ctx, f, blob.ObjectPath("mentors", fh.Filename))
	s.metrics.Uploads.WithLabelValues(result(err)).Inc()
	return url, err
}

// noFile reports whether a FormFile error only means the form carried no
// file: the field is absent or the form is not multipart.
func noFile(err error) bool {
	return errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm)
}

func (s *Server) removePhoto(ctx context.Context, url string) {
	if url == "" {
		return
	}
	objectPath, ok := s.blobs.ObjectPathFromURL(url)
	if !ok {
		return
	}
	if err := s.blobs.Delete(ctx, objectPath); err != nil {
		s.logger.Warn("remove mentor photo", "path", objectPath, "error", err)
	}
}

func (s *Server) adminMentorDelete(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerFrom(c)
	mentor, err := s.docs.GetMentor(ctx, caller, c.Params("id"))
	if err != nil {
		return err
	}
	if err := s.docs.DeleteMentor(ctx, caller, mentor.ID.String()); err != nil {
		return err
	}
	s.removePhoto(ctx, mentor.User.Photo)
	return c.Redirect("/admin/mentores", fiber.StatusSeeOther)
}

func (s *Server) adminCourses(c *fiber.Ctx) error {
	courses, err := s.docs.ListCourses(c.UserContext(), callerFrom(c), docstore.CourseFilter{})
	if err != nil {
		return err
	}
	return c.Render("admin_courses", s.view(c, fiber.Map{
		"title":   "Cursos",
		"courses": courses,
	}))
}

func (s *Server) renderCourseForm(c *fiber.Ctx, status int, course *docstore.Course, record *CoursePayload, errs map[string]string) error {
	return c.Status(status).Render("admin_course_form", s.view(c, fiber.Map{
		"title":    "Curso",
		"course":   course,
		"record":   record,
		"errors":   errs,
		"statuses": []string{string(docstore.CoursePublished), string(docstore.CourseDraft)},
	}))
}

func (s *Server) adminCourseForm(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return s.renderCourseForm(c, fiber.StatusOK, nil, &CoursePayload{Status: string(docstore.CourseDraft)}, nil)
	}
	course, err := s.docs.GetCourse(c.UserContext(), callerFrom(c), id)
	if err != nil {
		return err
	}
	return s.renderCourseForm(c, fiber.StatusOK, course, &CoursePayload{
		Title:       course.Title,
		Category:    course.Category,
		Description: course.Description,
		Status:      string(course.Status),
		Images:      strings.Join(course.Images, "\n"),
		Videos:      joinMedia(course.Videos),
		PDFs:        joinMedia(course.PDFs),
	}, nil)
}

func (s *Server) adminCourseSave(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerFrom(c)

	course := &docstore.Course{}
	id := c.Params("id")
	if id != "" {
		existing, err := s.docs.GetCourse(ctx, caller, id)
		if err != nil {
			return err
		}
		course = existing
	}

	payload := new(CoursePayload)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}
	if err := payload.Validate(); err != nil {
		var current *docstore.Course
		if id != "" {
			current = course
		}
		return s.renderCourseForm(c, fiber.StatusUnprocessableEntity, current, payload, fieldErrors(err))
	}
	payload.Apply(course)

	var err error
	if id == "" {
		_, err = s.docs.CreateCourse(ctx, caller, course)
	} else {
		_, err = s.docs.UpdateCourse(ctx, caller, course)
	}
	if err != nil {
		return err
	}
	return c.Redirect("/admin/cursos", fiber.StatusSeeOther)
}

func (s *Server) adminCourseDelete(c *fiber.Ctx) error {
	if err := s.docs.DeleteCourse(c.UserContext(), callerFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.Redirect("/admin/cursos", fiber.StatusSeeOther)
}

// bookingFilter reads ?q= and ?status=. "Todos" and an empty status mean
// no status filter.
func bookingFilter(c *fiber.Ctx) (docstore.BookingFilter, string) {
	status := strings.TrimSpace(c.Query("status"))
	filter := docstore.BookingFilter{Search: strings.TrimSpace(c.Query("q"))}
	if status == "" {
		status = statusAll
	}
	if status != statusAll {
		filter.Status = docstore.BookingStatus(status)
	}
	return filter, status
}

func (s *Server) listBookings(c *fiber.Ctx) ([]*docstore.Booking, docstore.BookingFilter, string, error) {
	filter, status := bookingFilter(c)
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, filter, status, fmt.Errorf("%w: unknown booking status %q", academia.ErrValidation, status)
	}
	bookings, err := s.docs.ListBookings(c.UserContext(), callerFrom(c), filter)
	return bookings, filter, status, err
}

func (s *Server) adminBookings(c *fiber.Ctx) error {
	bookings, filter, status, err := s.listBookings(c)
	if err != nil {
		return err
	}

	statuses := []string{statusAll}
	for _, st := range docstore.BookingStatuses() {
		statuses = append(statuses, string(st))
	}
	return c.Render("admin_bookings", s.view(c, fiber.Map{
		"title":    "Reservas",
		"bookings": bookings,
		"search":   filter.Search,
		"status":   status,
		"statuses": statuses,
		"choices":  docstore.BookingStatuses(),
	}))
}

// adminBookingsCSV exports the filtered list.
func (s *Server) adminBookingsCSV(c *fiber.Ctx) error {
	bookings, _, _, err := s.listBookings(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "mentor", "student", "date", "time"})
	for _, b := range bookings {
		_ = w.Write([]string{b.ID.String(), b.MentorName, b.FullName, b.Date, b.Time})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="bookings.csv"`)
	return c.Send(buf.Bytes())
}

func (s *Server) adminBookingStatus(c *fiber.Ctx) error {
	payload := new(BookingStatusPayload)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %v", academia.ErrValidation, err)
	}
	if _, err := s.docs.SetBookingStatus(c.UserContext(), callerFrom(c), c.Params("id"), docstore.BookingStatus(payload.Status)); err != nil {
		return err
	}
	return c.Redirect(bookingsReturnURL(c), fiber.StatusSeeOther)
}

func (s *Server) adminBookingDelete(c *fiber.Ctx) error {
	if err := s.docs.DeleteBooking(c.UserContext(), callerFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.Redirect(bookingsReturnURL(c), fiber.StatusSeeOther)
}

// bookingsReturnURL keeps the list filters across a form post.
func bookingsReturnURL(c *fiber.Ctx) string {
	if ret := c.FormValue("return"); isLocalPath(ret) && strings.HasPrefix(ret, "/admin/bookings") {
		return ret
	}
	return "/admin/bookings"
}
