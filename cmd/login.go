package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/facelogin/internal/client"
	"github.com/example/facelogin/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login <frame>...",
	Short: "Log in by face using camera frames from image files",
	Long: `Run the face login loop against a server: frames are taken from the given
image files in turn, halved in size and sent to POST /auth until one is
accepted, a fatal error occurs or the attempts run out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("server", "http://localhost:8080", "Face login server URL")
	loginCmd.Flags().String("stored-id", "", "Stored id returned by enroll (required)")
	loginCmd.Flags().String("redirect-to", "", "Redirect target overriding the server's")
	loginCmd.Flags().Int("attempts", client.DefaultAttempts, "Number of frames to try")
	loginCmd.Flags().Duration("interval", client.DefaultInterval, "Delay between attempts")
	loginCmd.Flags().String("cookie", config.DefaultCookieName, "Session cookie name the server sets")
	_ = loginCmd.MarkFlagRequired("stored-id")
}

func runLogin(cmd *cobra.Command, args []string) error {
	c := client.New(mustGetString(cmd, "server"), &http.Client{Timeout: 30 * time.Second}, mustGetString(cmd, "cookie"))

	attempts := mustGetInt(cmd, "attempts")
	bar := progressbar.NewOptions(attempts,
		progressbar.OptionSetDescription("Authenticating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	poller := client.NewPoller(c, zap.NewNop())
	poller.Attempts = attempts
	poller.Interval = mustGetDuration(cmd, "interval")
	poller.RedirectTo = mustGetString(cmd, "redirect-to")
	poller.OnAttempt = func(attempt int, err error) {
		_ = bar.Add(1)
	}

	result, err := poller.Run(cmd.Context(), mustGetString(cmd, "stored-id"), client.NewFileFrames(args...))
	_ = bar.Finish()
	fmt.Println()
	if errors.Is(err, client.ErrAttemptsExhausted) {
		return fmt.Errorf("face not recognized, log in with your password instead: %w", err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (id %d) after %d attempt(s)\n", result.User.Name, result.User.ID, result.Attempts)
	fmt.Printf("Redirect: %s\n", result.Redirect)
	if result.Session != "" {
		fmt.Printf("Session: %s\n", result.Session)
	}
	return nil
}
