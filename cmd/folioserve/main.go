// folioserve is a file-backed content-management backend.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/folioserve/folioserve/internal/auth"
	"github.com/folioserve/folioserve/internal/config"
	"github.com/folioserve/folioserve/internal/server"
	"github.com/folioserve/folioserve/internal/store"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "folioserve",
		Short: "folioserve - file-backed content management backend",
		Long: `folioserve serves a directory of user-authored objects (projects, posts)
through an HTTP API with token authentication and owner/role permissions.

Each object is one folder holding a config.yaml, a content.md document and
asset subfolders. Structural drift in the folder layout is repaired on read.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "folioserve.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var addRole string
	userAddCmd := &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Add a user account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(args[0], args[1], addRole)
		},
	}
	userAddCmd.Flags().StringVar(&addRole, "role", auth.RoleUser, "account role (admin or user)")
	userCmd.AddCommand(userAddCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("folioserve %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}

	rootCmd.AddCommand(serveCmd, userCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// nolint:revive // args required by cobra.Command RunE signature
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := seedAdmin(cfg); err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	log.Info().Str("version", Version).Msg("folioserve starting")
	return srv.ListenAndServe()
}

// seedAdmin creates the bootstrap admin account when the user collection is
// empty and the config names one.
func seedAdmin(cfg *config.Config) error {
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" {
		return nil
	}

	users := store.NewUserStore(cfg.UsersFile())
	if users.Count() > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if err := users.Create(store.User{
		ID:       store.GenerateID(),
		Username: cfg.Admin.Username,
		Password: hash,
		Role:     auth.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	log.Info().Str("username", cfg.Admin.Username).Msg("seeded bootstrap admin account")
	return nil
}

func runUserAdd(username, password, role string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if role != auth.RoleAdmin {
		role = auth.RoleUser
	}

	users := store.NewUserStore(cfg.UsersFile())
	if err := users.Create(store.User{
		ID:       store.GenerateID(),
		Username: username,
		Password: hash,
		Role:     role,
	}); err != nil {
		return err
	}

	fmt.Printf("user %q created with role %s\n", username, role)
	return nil
}
