package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lu-zhengda/mailtriage/internal/api"
	"github.com/lu-zhengda/mailtriage/internal/app"
	"github.com/lu-zhengda/mailtriage/internal/auth"
	"github.com/lu-zhengda/mailtriage/internal/config"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/lu-zhengda/mailtriage/internal/logging"
	"github.com/lu-zhengda/mailtriage/internal/notifier"
	"github.com/lu-zhengda/mailtriage/internal/store"
	"github.com/lu-zhengda/mailtriage/internal/store/sqlite"
	"github.com/lu-zhengda/mailtriage/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string

	// jsonFlag enables JSON output for all commands.
	jsonFlag bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailtriage",
		Short:         "Terminal client for the email triage service",
		Long:          "Browse categorized mail threads, search by meaning, reply, and get notified of new mail.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.requireLogin(); err != nil {
				return err
			}

			ctx := cmd.Context()
			dash := rt.dashboard(app.AllCapabilities())
			dash.Start(ctx)
			defer dash.Close()

			user, _ := rt.session.UserID(ctx)
			return tui.Run(ctx, dash, tui.Options{
				Theme:     tui.ThemeByName(rt.cfg.UI.Theme),
				Account:   user,
				Redirects: rt.auth.Redirects(),
			})
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("mailtriage %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReadCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newReplyCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newNotificationsCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newSimilarCmd())
	root.AddCommand(newMatchesCmd())
	root.AddCommand(newLabelsCmd())
	root.AddCommand(newAutoReplyCmd())
	return root
}

func Execute() {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime holds the collaborators every command builds from configuration.
type runtime struct {
	cfg     *config.Config
	log     *logrus.Logger
	logFile io.Closer
	db      *sqlite.DB
	session *store.SessionStore
	client  *api.Client
	auth    *auth.Authenticator
}

func newRuntime() (*runtime, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logFile, err := logging.Open(cfg.LogFile(), cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	db, err := openDB()
	if err != nil {
		logFile.Close()
		return nil, err
	}

	session := store.NewSessionStore(store.NewKeyringTokenStore(), db)
	client := api.New(cfg.API.BaseURL, session,
		api.WithLogger(logger),
		api.WithTimeout(cfg.APITimeout()),
	)
	authn := auth.New(client, session,
		auth.WithCallbackAddr(cfg.Auth.CallbackAddr),
		auth.WithLogger(logger),
	)
	client.SetUnauthorizedHandler(authn.HandleUnauthorized)

	return &runtime{
		cfg:     cfg,
		log:     logger,
		logFile: logFile,
		db:      db,
		session: session,
		client:  client,
		auth:    authn,
	}, nil
}

func (r *runtime) Close() {
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Warn("failed to close database")
	}
	r.logFile.Close()
}

func (r *runtime) requireLogin() error {
	if !r.session.HasToken() {
		return auth.ErrNotLoggedIn
	}
	return nil
}

// dashboard builds a dashboard over the backend with the configured
// intervals. The notifier records arrivals in the local database.
func (r *runtime) dashboard(caps app.Capabilities) *app.Dashboard {
	if !r.cfg.Poll.Enabled {
		caps.Notifier = false
	}
	initial, _ := domain.ParseCategory(r.cfg.UI.DefaultCategory)
	return app.New(r.client,
		app.WithCapabilities(caps),
		app.WithPageSize(r.cfg.API.PageSize),
		app.WithRefreshInterval(r.cfg.RefreshInterval()),
		app.WithInitialCategory(initial),
		app.WithLogger(r.log),
		app.WithNotifier(r.session,
			notifier.WithInterval(r.cfg.PollInterval()),
			notifier.WithMaxResults(r.cfg.Poll.MaxResults),
			notifier.WithRecorder(r.db),
			notifier.WithLogger(r.log),
		),
	)
}

// noBackgroundCapabilities is for one-shot commands that must not start
// timers.
func noBackgroundCapabilities() app.Capabilities {
	return app.Capabilities{Search: true, Reply: true}
}

// explain rewrites errors the user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return fmt.Errorf("%w: session expired, run `mailtriage login`", err)
	case errors.Is(err, api.ErrNotFound):
		return fmt.Errorf("%w: not found", err)
	}
	return err
}

// openDB creates the data directory and opens the SQLite database.
func openDB() (*sqlite.DB, error) {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlite.New(filepath.Join(dataDir, "mailtriage.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// loadConfig loads the application configuration from the config file.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
