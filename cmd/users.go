package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"Gin_postgres_redis_equipment_loans/app"
	"Gin_postgres_redis_equipment_loans/models"
	"Gin_postgres_redis_equipment_loans/session"
)

var (
	username    string
	displayName string
	roleName    string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the user directory",
}

var addUserCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.Role(strings.ToLower(roleName))
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", roleName)
		}
		st, err := openStorage(false)
		if err != nil {
			return err
		}
		defer st.Close()

		name := displayName
		if name == "" {
			name = username
		}
		u := &models.User{ID: uuid.NewString(), Username: username, DisplayName: name, Role: role}
		if err := st.Users.CreateUser(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Printf("created %s (%s) as %s\n", u.Username, u.ID, u.Role)
		return nil
	},
}

var listUsersCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with their roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStorage(false)
		if err != nil {
			return err
		}
		defer st.Close()

		users, total, err := st.Users.ListUsers(cmd.Context(), "", 1, 100)
		if err != nil {
			return err
		}
		if total == 0 {
			fmt.Println("No users found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tLAST SEEN")
		fmt.Fprintln(w, "--\t--------\t----\t---------")
		for _, u := range users {
			seen := "-"
			if u.LastSeenAt != nil {
				seen = u.LastSeenAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, seen)
		}
		if int64(len(users)) < total {
			fmt.Fprintf(w, "... %d more\n", total-int64(len(users)))
		}
		return w.Flush()
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Issue or revoke app sessions",
}

var issueSessionCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a session id for a user (bearer token or app_session cookie)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(store *session.AppSessionStore, u *models.User) error {
			id, err := store.Issue(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var revokeSessionCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke every session of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(store *session.AppSessionStore, u *models.User) error {
			if err := store.RevokeAllForUser(cmd.Context(), u.ID); err != nil {
				return err
			}
			fmt.Printf("sessions of %s revoked\n", u.Username)
			return nil
		})
	},
}

// withSessions resolves --username and hands the session store to fn.
func withSessions(cmd *cobra.Command, fn func(*session.AppSessionStore, *models.User) error) error {
	st, err := openStorage(false)
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := st.Users.FindUserByUsername(cmd.Context(), username)
	if err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	rdb, err := app.NewRedis(cmd.Context(), cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	return fn(session.NewAppSessionStore(rdb, cfg.Session.TTL), u)
}

func init() {
	addUserCmd.Flags().StringVar(&username, "username", "", "login name")
	addUserCmd.Flags().StringVar(&displayName, "name", "", "display name (defaults to username)")
	addUserCmd.Flags().StringVar(&roleName, "role", string(models.RoleStudent), "student, staff, faculty or admin")
	_ = addUserCmd.MarkFlagRequired("username")
	usersCmd.AddCommand(addUserCmd, listUsersCmd)

	for _, c := range []*cobra.Command{issueSessionCmd, revokeSessionCmd} {
		c.Flags().StringVar(&username, "username", "", "login name")
		_ = c.MarkFlagRequired("username")
	}
	sessionCmd.AddCommand(issueSessionCmd, revokeSessionCmd)

	rootCmd.AddCommand(usersCmd, sessionCmd)
}
