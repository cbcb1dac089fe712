package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/facelogin/internal/repository"
	"github.com/example/facelogin/internal/usecase"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account that can log in with a password",
	RunE:  runUserAdd,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().String("login", "", "Login name (required)")
	userAddCmd.Flags().String("name", "", "Display name")
	userAddCmd.Flags().String("password", "", "Password (required)")
	_ = userAddCmd.MarkFlagRequired("login")
	_ = userAddCmd.MarkFlagRequired("password")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := initDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(ctx, db); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	login := mustGetString(cmd, "login")
	users := repository.NewUserRepository(db, logger)
	if _, err := users.FindUserByLogin(ctx, login); err == nil {
		return fmt.Errorf("user %q already exists", login)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := usecase.HashPassword(mustGetString(cmd, "password"))
	if err != nil {
		return err
	}
	user := &repository.User{
		Login:        login,
		DisplayName:  mustGetString(cmd, "name"),
		PasswordHash: hash,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return err
	}

	fmt.Printf("Created user %s (id %d)\n", user.Login, user.ID)
	return nil
}
