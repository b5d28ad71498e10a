package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the session and forget the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !sess.Authenticated() {
			fmt.Println("Not logged in")
			return nil
		}

		// Best effort: the local credential is cleared even when the
		// server call fails, otherwise a dead backend pins a live token.
		if err := client.Logout(cmd.Context()); err != nil {
			fmt.Printf("Warning: server logout failed: %v\n", err)
		}
		if err := sess.Clear(); err != nil {
			return err
		}

		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireAuth(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s <%s>\n", user.DisplayName(), user.Email)
		if exp, ok := sess.TokenExpiry(); ok {
			fmt.Printf("Session valid until %s\n", exp.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
