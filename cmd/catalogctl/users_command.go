package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/cinesocial/internal/repository"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage local user records",
	}

	var email, nickname, profileImg string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user so they can post reviews and follow others",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := repository.UserCreateParams{Email: email, Nickname: nickname}
			if img := strings.TrimSpace(profileImg); img != "" {
				params.ProfileImg = &img
			}
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				user, err := rt.repo.Users.Create(cmd.Context(), params)
				if err != nil {
					return fmt.Errorf("create user %s: %w", email, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.ID, user.Email)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "Login email")
	create.Flags().StringVar(&nickname, "nickname", "", "Display name")
	create.Flags().StringVar(&profileImg, "profile-img", "", "Profile image URL")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("nickname")

	cmd.AddCommand(create)
	return cmd
}
