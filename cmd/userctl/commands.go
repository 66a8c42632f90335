package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/config"
	"github.com/keyxmakerx/userservice/internal/database"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
	"github.com/keyxmakerx/userservice/internal/sanitize"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "userctl",
		Short:         "Operator tooling for the user service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newCreateAdminCmd())
	return root
}

// readSecret returns args[0] or, when absent, the first line of stdin.
func readSecret(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password is empty")
	}
	return secret, nil
}

func newHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt digest of a password (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, args)
			if err != nil {
				return err
			}
			digest, err := auth.NewBcryptHasher(cost).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 10, "bcrypt cost")
	return cmd
}

// openDB loads config and connects to MariaDB.
func openDB(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewMariaDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var path string
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default MIGRATIONS_PATH)")

	migrationsPath := func(cfg *config.Config) string {
		if path != "" {
			return path
		}
		return cfg.MigrationsPath
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return database.RunMigrations(db, migrationsPath(cfg))
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return database.RollbackMigrations(db, migrationsPath(cfg), steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, ok, err := database.MigrationVersion(db, migrationsPath(cfg))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	})

	return cmd
}

func newCreateAdminCmd() *cobra.Command {
	var email, username string
	var promote bool

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN account, or promote an existing one with --promote (password from stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			var password string
			if !promote {
				if password, err = readSecret(cmd, nil); err != nil {
					return err
				}
			}

			user, err := createAdmin(cmd.Context(), auth.NewUserRepository(db), auth.NewBcryptHasher(cfg.Auth.BcryptCost),
				auth.RegisterRequest{Username: username, Email: email, Password: password, Role: string(auth.RoleAdmin)}, promote)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (id %d) ready\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "display name for a new account")
	cmd.Flags().BoolVar(&promote, "promote", false, "promote and reactivate an existing account instead")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// createAdmin inserts a new ADMIN account, or with promote, grants ADMIN to
// an existing account and reactivates it.
func createAdmin(ctx context.Context, repo auth.UserRepository, hasher auth.PasswordHasher, req auth.RegisterRequest, promote bool) (*auth.User, error) {
	if promote {
		user, err := repo.FindByEmail(ctx, req.Email)
		if apperror.Is(err, apperror.TypeNotFound) {
			return nil, fmt.Errorf("no account with email %s", req.Email)
		}
		if err != nil {
			return nil, err
		}
		user.Role = auth.RoleAdmin
		user.Active = true
		if err := repo.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("promoting %s: %w", req.Email, err)
		}
		slog.Info("account promoted to admin", slog.String("email", user.Email))
		return user, nil
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	exists, err := repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("an account with email %s already exists (use --promote)", req.Email)
	}

	digest, err := hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &auth.User{
		Email:        req.Email,
		Username:     sanitize.PlainText(req.Username),
		PasswordHash: digest,
		Role:         auth.RoleAdmin,
		Active:       true,
	}
	if err := repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	slog.Info("admin account created", slog.String("email", user.Email))
	return user, nil
}
