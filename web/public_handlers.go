package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/academia"
	"github.com/goliatone/academia/docstore"
)

func (s *Server) home(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerFrom(c)

	courses, err := s.docs.ListCourses(ctx, caller, docstore.CourseFilter{Status: docstore.CoursePublished})
	if err != nil {
		return err
	}
	mentors, err := s.docs.ListMentors(ctx, caller, docstore.MentorFilter{Status: docstore.MentorActive})
	if err != nil {
		return err
	}

	return c.Render("home", s.view(c, fiber.Map{
		"title":   "Academia Pro",
		"courses": courses,
		"mentors": mentors,
	}))
}

func (s *Server) courseShow(c *fiber.Ctx) error {
	course, err := s.docs.GetCourse(c.UserContext(), callerFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Render("course", s.view(c, fiber.Map{
		"title":  course.Title,
		"course": course,
	}))
}

func (s *Server) mentorShow(c *fiber.Ctx) error {
	mentor, err := s.docs.GetMentor(c.UserContext(), callerFrom(c), c.Params("mentorId"))
	if err != nil {
		return err
	}
	return c.Render("mentor", s.view(c, fiber.Map{
		"title":  mentor.User.Name,
		"mentor": mentor,
	}))
}

func (s *Server) renderBooking(c *fiber.Ctx, status int, mentor *docstore.Mentor, record *BookingPayload, errs map[string]string) error {
	return c.Status(status).Render("booking", s.view(c, fiber.Map{
		"title":  "Reservar sesión",
		"mentor": mentor,
		"record": record,
		"errors": errs,
	}))
}

// bookingForm prefills the form from the signed in identity.
func (s *Server) bookingForm(c *fiber.Ctx) error {
	mentor, err := s.docs.GetMentor(c.UserContext(), callerFrom(c), c.Params("mentorId"))
	if err != nil {
		return err
	}
	record := &BookingPayload{}
	if id := clientFrom(c).CurrentIdentity(); id != nil {
		record.FullName = id.DisplayName
		record.Email = id.Email
	}
	return s.renderBooking(c, fiber.StatusOK, mentor, record, nil)
}

func (s *Server) bookingCreate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerFrom(c)

	mentor, err := s.docs.GetMentor(ctx, caller, c.Params("mentorId"))
	if err != nil {
		return err
	}

	payload := new(BookingPayload)
	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("booking parse payload", "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}

	region := s.cfg.Server.PhoneRegion
	if err := payload.Validate(region); err != nil {
		return s.renderBooking(c, fiber.StatusUnprocessableEntity, mentor, payload, fieldErrors(err))
	}

	booking := payload.Booking(region)
	booking.MentorID = mentor.ID
	created, err := s.docs.CreateBooking(ctx, caller, booking)
	if err != nil {
		if academia.IsPermissionDenied(err) || academia.IsNotFound(err) {
			return err
		}
		return s.renderBooking(c, statusFor(err), mentor, payload, map[string]string{
			"form": "No se pudo crear la reserva: " + academia.ErrorMessage(err),
		})
	}

	s.logger.Info("booking created", "booking_id", created.ID, "mentor_id", mentor.ID, "user_id", caller.UID)
	return c.Render("booking_done", s.view(c, fiber.Map{
		"title":   "¡Reserva completada!",
		"mentor":  mentor,
		"booking": created,
	}))
}
