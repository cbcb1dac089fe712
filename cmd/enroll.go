package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/facelogin/internal/client"
	"github.com/example/facelogin/internal/config"
	"github.com/example/facelogin/internal/imagecodec"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image>",
	Short: "Enroll a face image for an account",
	Long: `Log in with a password and register the face in the given PNG or JPEG
image. The printed stored id is what the login page keeps to start a face
login later.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

var enrollStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many faces are enrolled for an account",
	Args:  cobra.NoArgs,
	RunE:  runEnrollStatus,
}

var enrollDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove every enrolled face of an account",
	Args:  cobra.NoArgs,
	RunE:  runEnrollDisable,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.AddCommand(enrollStatusCmd, enrollDisableCmd)

	enrollCmd.PersistentFlags().String("server", "http://localhost:8080", "Face login server URL")
	enrollCmd.PersistentFlags().String("login", "", "Account login (required)")
	enrollCmd.PersistentFlags().String("password", "", "Account password (required)")
	_ = enrollCmd.MarkPersistentFlagRequired("login")
	_ = enrollCmd.MarkPersistentFlagRequired("password")
}

// loggedInClient returns a client holding a password session.
func loggedInClient(cmd *cobra.Command) (*client.Client, error) {
	c := client.New(mustGetString(cmd, "server"), &http.Client{Timeout: 30 * time.Second}, config.DefaultCookieName)
	user, err := c.Login(cmd.Context(), mustGetString(cmd, "login"), mustGetString(cmd, "password"))
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	fmt.Printf("Logged in as %s\n", user.Name)
	return c, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	frame, err := imagecodec.PrepareFrame(raw, 1)
	if err != nil {
		return fmt.Errorf("failed to prepare image: %w", err)
	}

	c, err := loggedInClient(cmd)
	if err != nil {
		return err
	}
	resp, err := c.Capture(cmd.Context(), frame)
	if err != nil {
		return fmt.Errorf("enroll failed: %w", err)
	}

	fmt.Printf("Enrolled face for user %d\n", resp.UserID)
	fmt.Printf("Stored id: %s\n", resp.StoredID)
	return nil
}

func runEnrollStatus(cmd *cobra.Command, args []string) error {
	c, err := loggedInClient(cmd)
	if err != nil {
		return err
	}
	n, err := c.Status(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Enrolled faces: %d\n", n)
	return nil
}

func runEnrollDisable(cmd *cobra.Command, args []string) error {
	c, err := loggedInClient(cmd)
	if err != nil {
		return err
	}
	if err := c.Revoke(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Face login disabled")
	return nil
}
