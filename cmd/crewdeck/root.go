package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crewdeck/crewdeck/internal/api"
	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/logging"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/session"
)

// Shared wiring built once in the persistent pre-run and used by every
// command.
var (
	cfg    *config.Config
	logs   *logging.Factory
	sess   *session.Session
	client *api.Client

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "crewdeck",
	Short: "Team task board and chat from the terminal",
	Long: `crewdeck is a terminal client for the crewdeck backend.

It talks to the same REST API and push channel as the web app: browse and
edit the task board, chat in channels or direct messages, and watch live
updates arrive without refreshing anything.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr as well as the log file")
}

// initApp builds the config, loggers, session, and REST client shared by
// all commands.
func initApp() error {
	loaded, err := config.Load(viper.New())
	if err != nil {
		return err
	}
	cfg = loaded

	logs = logging.Setup(cfg.LogFile, verbose)

	sess = session.New(cfg.SessionFile, logs.Logger("session"))
	if err := sess.Load(); err != nil {
		return err
	}

	client = api.NewClient(sess, &api.Config{
		BaseURL: cfg.APIURL,
		Logger:  logs.Logger("api"),
	})
	return nil
}

// requireAuth revalidates the restored credential against GET /auth/me and
// returns the logged-in user. A dead or missing credential yields an error
// telling the user to log in; the 401 path has already cleared the stored
// token by the time the error surfaces.
func requireAuth(ctx context.Context) (*model.User, error) {
	if !sess.Authenticated() {
		return nil, fmt.Errorf("not logged in; run 'crewdeck login'")
	}
	if sess.Expired(time.Now()) {
		_ = sess.Clear()
		return nil, fmt.Errorf("session expired; run 'crewdeck login'")
	}

	user, err := client.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, fmt.Errorf("session rejected by server; run 'crewdeck login'")
		}
		return nil, err
	}
	return user, nil
}
