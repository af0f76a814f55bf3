package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/docstore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Fixtures is the seed file layout.
type Fixtures struct {
	Users   []UserFixture   `yaml:"users"`
	Mentors []MentorFixture `yaml:"mentors"`
	Courses []CourseFixture `yaml:"courses"`
}

type UserFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type MentorFixture struct {
	Name         string   `yaml:"name"`
	Email        string   `yaml:"email"`
	Phone        string   `yaml:"phone"`
	Photo        string   `yaml:"photo"`
	Experience   string   `yaml:"experience"`
	Title        string   `yaml:"title"`
	Status       string   `yaml:"status"`
	Languages    []string `yaml:"languages"`
	Certificates []string `yaml:"certificates"`
	Schedules    []string `yaml:"schedules"`
}

type MediaFixture struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

type CourseFixture struct {
	Title       string         `yaml:"title"`
	Category    string         `yaml:"category"`
	Description string         `yaml:"description"`
	Status      string         `yaml:"status"`
	Images      []string       `yaml:"images"`
	Videos      []MediaFixture `yaml:"videos"`
	PDFs        []MediaFixture `yaml:"pdfs"`
}

// SignUpper creates accounts. identity.Service satisfies it.
type SignUpper interface {
	SignUp(ctx context.Context, email, password, displayName string) (*academia.Credential, error)
}

// SeedReport counts what a seed run created.
type SeedReport struct {
	Users   int
	Skipped int
	Mentors int
	Courses int
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixtures.yml>",
	Short: "Load profiles, mentors and courses from a fixtures file",
	Long: `Load users, mentors and courses from a YAML fixtures file. Users whose
email already has an account are skipped.

Example fixtures:
  users:
    - name: Root
      email: root@example.com
      password: change-me
      role: admin
  mentors:
    - name: Bruno
      experience: Matemáticas
      status: Activo
      languages: [Español, Inglés]
  courses:
    - title: Álgebra
      status: Publicado
      videos:
        - url: https://example.com/intro
          title: Introducción`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtures, err := loadFixtures(args[0])
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		backend, err := a.identity()
		if err != nil {
			return err
		}

		report, err := seed(cmd.Context(), a.docs, backend, fixtures, a.logs.GetLogger("academia.seed"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users (%d skipped), %d mentors, %d courses\n",
			report.Users, report.Skipped, report.Mentors, report.Courses)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func loadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	fixtures := &Fixtures{}
	if err := yaml.Unmarshal(data, fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return fixtures, nil
}

// seed writes fixtures as the operator, outside the document access rules.
func seed(ctx context.Context, docs *docstore.Store, accounts SignUpper, f *Fixtures, logger academia.Logger) (SeedReport, error) {
	var report SeedReport
	repos := docs.Repositories()

	for _, u := range f.Users {
		role := academia.RoleApprentice
		if u.Role != "" {
			r, ok := academia.ParseRole(u.Role)
			if !ok {
				return report, fmt.Errorf("%w: user %s has unknown role %q", academia.ErrValidation, u.Email, u.Role)
			}
			role = r
		}

		cred, err := accounts.SignUp(ctx, u.Email, u.Password, u.Name)
		if errors.Is(err, academia.ErrEmailInUse) {
			logger.Info("user already exists, skipping", "email", u.Email)
			report.Skipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("seed user %s: %w", u.Email, err)
		}

		_, err = repos.Profiles().Create(ctx, &docstore.Profile{
			ID:    uuid.MustParse(cred.Identity.UID),
			Name:  strings.TrimSpace(u.Name),
			Email: cred.Identity.Email,
			Role:  role,
		})
		if err != nil {
			return report, fmt.Errorf("seed profile %s: %w", u.Email, err)
		}
		report.Users++
	}

	for _, m := range f.Mentors {
		status := docstore.MentorStatus(m.Status)
		if status == "" {
			status = docstore.MentorActive
		}
		_, err := repos.Mentors().Create(ctx, &docstore.Mentor{
			ID: uuid.New(),
			User: docstore.MentorUser{
				Name:  m.Name,
				Email: strings.ToLower(m.Email),
				Phone: m.Phone,
				Photo: m.Photo,
			},
			Experience:   m.Experience,
			Title:        m.Title,
			Status:       status,
			Languages:    orEmpty(m.Languages),
			Certificates: orEmpty(m.Certificates),
			Schedules:    orEmpty(m.Schedules),
		})
		if err != nil {
			return report, fmt.Errorf("seed mentor %s: %w", m.Name, err)
		}
		report.Mentors++
	}

	for _, c := range f.Courses {
		status := docstore.CourseStatus(c.Status)
		if status == "" {
			status = docstore.CourseDraft
		}
		_, err := repos.Courses().Create(ctx, &docstore.Course{
			ID:          uuid.New(),
			Title:       c.Title,
			Category:    c.Category,
			Description: c.Description,
			Status:      status,
			Images:      orEmpty(c.Images),
			Videos:      mediaLinks(c.Videos),
			PDFs:        mediaLinks(c.PDFs),
		})
		if err != nil {
			return report, fmt.Errorf("seed course %s: %w", c.Title, err)
		}
		report.Courses++
	}

	logger.Info("seed finished", "users", report.Users, "mentors", report.Mentors, "courses", report.Courses)
	return report, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mediaLinks(in []MediaFixture) []docstore.MediaLink {
	out := make([]docstore.MediaLink, 0, len(in))
	for _, m := range in {
		out = append(out, docstore.MediaLink{URL: m.URL, Title: m.Title})
	}
	return out
}
