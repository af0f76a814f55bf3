package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/docstore"
	"github.com/goliatone/go-repository-bun"
	"github.com/spf13/cobra"
)

var grantRoleCmd = &cobra.Command{
	Use:   "grant-role <email> <role>",
	Short: "Change the role stored in a user profile",
	Long: `Change the role stored in the profile of the user with the given email.
This is how the first admin is provisioned.

Examples:
  academia grant-role ana@example.com admin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		profile, err := grantRole(cmd.Context(), a.docs, args[0], args[1])
		if err != nil {
			return err
		}
		a.logger.Info("role granted", "uid", profile.ID.String(), "email", profile.Email, "role", string(profile.Role))
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", profile.Email, profile.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(grantRoleCmd)
}

// grantRole writes role on the profile matching email. It runs as the
// operator, outside the document access rules.
func grantRole(ctx context.Context, docs *docstore.Store, email, role string) (*docstore.Profile, error) {
	r, ok := academia.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", academia.ErrValidation, role)
	}

	repo := docs.Repositories().Profiles()
	profile, err := repo.GetByIdentifier(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("lookup profile %s: %w", email, err)
	}

	profile.Role = r
	return repo.Update(ctx, profile, repository.UpdateByID(profile.ID.String()))
}
