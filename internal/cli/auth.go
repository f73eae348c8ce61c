package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/cadence/internal/api"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/session"
)

var (
	authEmail    string
	authPassword string
	authUsername string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your session",
	Long:  `Commands for signing in to and out of the music service.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with email and password. Missing credentials are prompted for
when running in a terminal. The password can also be given via
CADENCE_PASSWORD.`,
	RunE: runAuthLogin,
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long:  `Register a new account and sign in to it.`,
	RunE:  runAuthSignup,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Long:  `Removes the stored tokens and cookies from this machine.`,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Long:  `Shows who is signed in and when the access token expires.`,
	RunE:  runAuthStatus,
}

func init() {
	for _, c := range []*cobra.Command{authLoginCmd, authSignupCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "account email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "account password")
	}
	authSignupCmd.Flags().StringVarP(&authUsername, "username", "u", "", "display name")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

// promptCredentials fills in whatever creds is missing.
func promptCredentials(creds *api.Credentials, withUsername bool) error {
	if creds.Password == "" {
		creds.Password = os.Getenv("CADENCE_PASSWORD")
	}
	missing := creds.Email == "" || creds.Password == "" || (withUsername && creds.Username == "")
	if !missing {
		return nil
	}
	if !interactive() {
		return errors.New("email and password are required (use --email and --password)")
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Email").
			Value(&creds.Email).
			Validate(required("email")),
	}
	if withUsername {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&creds.Username).
			Validate(required("username")))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&creds.Password).
		Validate(required("password")))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("sign in cancelled: %w", err)
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	creds := api.Credentials{Email: authEmail, Password: authPassword}
	if err := promptCredentials(&creds, false); err != nil {
		return err
	}

	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	sess, err := a.Login(cmd.Context(), creds.Email, creds.Password)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	return printSession("authenticated", sess)
}

func runAuthSignup(cmd *cobra.Command, args []string) error {
	creds := api.Credentials{Email: authEmail, Password: authPassword, Username: authUsername}
	if err := promptCredentials(&creds, true); err != nil {
		return err
	}

	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	sess, err := a.Signup(cmd.Context(), creds)
	if err != nil {
		return fmt.Errorf("sign up failed: %w", err)
	}
	return printSession("registered", sess)
}

func printSession(status string, sess session.Session) error {
	if JSONOutput() {
		out := map[string]any{"status": status}
		if sess.User != nil {
			out["username"] = sess.User.Username
			out["email"] = sess.User.Email
		}
		return printJSON(out)
	}

	if sess.User != nil {
		fmt.Printf("Signed in as %s (%s)\n", sess.User.Username, sess.User.Email)
	} else {
		fmt.Println("Signed in.")
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	if !a.Store.Session().IsAuthenticated() {
		if JSONOutput() {
			return printJSON(map[string]string{"status": "not_authenticated"})
		}
		fmt.Println("Not signed in.")
		return nil
	}

	if err := a.Logout(); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{"status": "logged_out"})
	}
	fmt.Println("Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, done, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	sess := a.Store.Session()
	if !sess.IsAuthenticated() {
		if JSONOutput() {
			return printJSON(map[string]any{"authenticated": false})
		}
		fmt.Println("Not signed in.")
		fmt.Println(cerrors.GetSuggestion(cerrors.ErrNotAuthenticated) + ".")
		return nil
	}

	expiry, known := a.Store.AccessExpiry()
	expired := a.Store.AccessExpired(0)

	if JSONOutput() {
		out := map[string]any{
			"authenticated": true,
			"expired":       expired,
			"has_refresh":   sess.Refresh != "",
		}
		if known {
			out["expires_at"] = expiry.Format(time.RFC3339)
		}
		if sess.User != nil {
			out["username"] = sess.User.Username
			out["email"] = sess.User.Email
		}
		return printJSON(out)
	}

	if sess.User != nil {
		fmt.Printf("Signed in as: %s (%s)\n", sess.User.Username, sess.User.Email)
	} else {
		fmt.Println("Signed in.")
	}
	switch {
	case !known:
		fmt.Println("Access token expiry: unknown")
	case expired:
		fmt.Printf("Access token expired %s", humanize.Time(expiry))
		if sess.Refresh != "" {
			fmt.Print(" (will refresh on next request)")
		}
		fmt.Println()
	default:
		fmt.Printf("Access token expires %s\n", humanize.Time(expiry))
	}
	return nil
}
