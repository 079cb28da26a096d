package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	accountEmail    string
	accountPassword string
	accountUsername string
	accountAvatar   string
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the signed-in account",
	}

	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	register.Flags().StringVar(&accountEmail, "email", "", "email address")
	register.Flags().StringVar(&accountPassword, "password", "", "password (prompted when empty)")
	register.Flags().StringVar(&accountUsername, "username", "", "display name (default: email name)")

	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	login.Flags().StringVar(&accountEmail, "email", "", "email address")
	login.Flags().StringVar(&accountPassword, "password", "", "password (prompted when empty)")

	profile := &cobra.Command{
		Use:   "profile",
		Short: "Change display name or avatar",
		Args:  cobra.NoArgs,
		RunE:  runProfileCmd,
	}
	profile.Flags().StringVar(&accountUsername, "username", "", "display name")
	profile.Flags().StringVar(&accountAvatar, "avatar", "", "avatar id")

	cmd.AddCommand(register, login, profile,
		&cobra.Command{
			Use:   "logout",
			Short: "Sign out",
			Args:  cobra.NoArgs,
			RunE:  runLogoutCmd,
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Show the signed-in account",
			Args:  cobra.NoArgs,
			RunE:  runWhoamiCmd,
		},
	)
	return cmd
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(accountEmail) == "" {
		return fmt.Errorf("--email is required")
	}
	password, err := resolvePassword(cmd, accountPassword)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	acc, err := a.accounts.Register(cmd.Context(), accountEmail, password, accountUsername)
	if err != nil {
		return err
	}
	a.flushMessages()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", acc.Username, acc.Email)
	return err
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(accountEmail) == "" {
		return fmt.Errorf("--email is required")
	}
	password, err := resolvePassword(cmd, accountPassword)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	acc, err := a.accounts.Login(cmd.Context(), accountEmail, password)
	if err != nil {
		return err
	}
	a.flushMessages()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", acc.Username, acc.Email)
	return err
}

func runLogoutCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	if err := a.accounts.Logout(cmd.Context()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return err
}

func runWhoamiCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	p := a.accounts.Profile.Get()
	out := cmd.OutOrStdout()
	if _, ok := a.accounts.Current(); !ok {
		_, err = fmt.Fprintf(out, "Not signed in (progress kept as %q).\nCrystals: %d  XP: %d\n", a.guestID, p.Crystals, p.Experience)
		return err
	}
	_, err = fmt.Fprintf(out, "%s <%s>\nCrystals: %d  XP: %d  Streak: %d\n", p.Username, p.Email, p.Crystals, p.Experience, p.Streak)
	return err
}

func runProfileCmd(cmd *cobra.Command, _ []string) error {
	if !cmd.Flags().Changed("username") && !cmd.Flags().Changed("avatar") {
		return fmt.Errorf("--username or --avatar is required")
	}
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	acc, ok := a.accounts.Current()
	if !ok {
		return fmt.Errorf("not signed in")
	}
	username, avatar := acc.Username, acc.AvatarID
	if cmd.Flags().Changed("username") {
		username = accountUsername
	}
	if cmd.Flags().Changed("avatar") {
		avatar = accountAvatar
	}
	if err := a.accounts.UpdateProfile(cmd.Context(), username, avatar); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
	return err
}

// resolvePassword prompts without echo when stdin is a terminal, otherwise
// reads one line.
func resolvePassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if _, err := fmt.Fprint(cmd.ErrOrStderr(), "Password: "); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		if _, werr := fmt.Fprintln(cmd.ErrOrStderr()); werr != nil {
			// Best-effort newline after the hidden input.
			_ = werr
		}
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
