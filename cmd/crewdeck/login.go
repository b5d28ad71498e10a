package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/crewdeck/crewdeck/internal/api"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session credential",
	Long: `Log in to the crewdeck backend.

Without flags an interactive form collects the credentials. With --email
set, the password is read from --password or prompted without echo, which
suits scripted use:

  crewdeck login
  crewdeck login --email dev@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		if email == "" {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Email").Value(&email),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
			))
			if err := form.Run(); err != nil {
				return fmt.Errorf("login cancelled: %w", err)
			}
		} else if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(raw)
		}

		resp, err := client.Login(cmd.Context(), api.LoginRequest{Email: email, Password: password})
		if err != nil {
			return err
		}
		if err := sess.Save(resp.Token, resp.User); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s\n", resp.User.DisplayName())
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		var name, email, password string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Name").Value(&name),
			huh.NewInput().Title("Email").Value(&email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("registration cancelled: %w", err)
		}

		resp, err := client.Register(cmd.Context(), api.RegisterRequest{
			Name:     name,
			Email:    email,
			Password: password,
		})
		if err != nil {
			if api.IsValidation(err) {
				printFieldErrors(err)
			}
			return err
		}
		if err := sess.Save(resp.Token, resp.User); err != nil {
			return err
		}

		fmt.Printf("Welcome, %s\n", resp.User.DisplayName())
		return nil
	},
}

// printFieldErrors surfaces per-field validation messages next to the
// summary error.
func printFieldErrors(err error) {
	apiErr, ok := err.(*api.Error)
	if !ok {
		return
	}
	for field, msg := range apiErr.Fields {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
	}
}

func init() {
	loginCmd.Flags().String("email", "", "Account email (skips the interactive form)")
	loginCmd.Flags().String("password", "", "Account password (prompted when omitted)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
}
