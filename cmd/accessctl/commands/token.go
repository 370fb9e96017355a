package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/service"
)

func newTokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts)
		},
	}
	cmd.Flags().String("user", "", "Username carried by the token")
	cmd.Flags().String("role", string(model.RoleUser), "Role carried by the token (admin|approver|dispatcher|user)")
	cmd.Flags().String("secret", "", "HS256 signing secret (defaults to http.jwt.secret of --config)")
	cmd.Flags().Int("expires-minutes", 0, "Token validity (defaults to http.jwt.expirationMinutes)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, opts *options) error {
	user, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	secret, _ := cmd.Flags().GetString("secret")
	expires, _ := cmd.Flags().GetInt("expires-minutes")

	user = strings.TrimSpace(user)
	if user == "" {
		return fmt.Errorf("--user is required")
	}

	userRole := model.UserRole(strings.ToLower(strings.TrimSpace(role)))
	switch userRole {
	case model.RoleAdmin, model.RoleApprover, model.RoleDispatcher, model.RoleUser:
	default:
		return fmt.Errorf("invalid role %q", role)
	}

	if secret == "" {
		secret = opts.cfg.HTTP.JWT.Secret
	}
	if expires <= 0 {
		expires = opts.cfg.HTTP.JWT.ExpirationMinutes
	}

	auth := service.NewAuthService(opts.logger, secret, expires)
	token, err := auth.IssueToken(model.Identity{Username: user, Role: userRole}, time.Now())
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
