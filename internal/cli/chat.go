package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"vozchat/internal/domain"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long: "Interactive push-to-talk: press Enter to start recording and Enter again to send. " +
			"Type q to quit. Profile flags, when given, open a new conversation first.",
		RunE: runChat,
	}
	addProfileFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, hasProfile, err := readProfile(cmd)
	if err != nil {
		return err
	}

	services, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	session := services.Session
	defer session.Dispose()

	if hasProfile {
		if _, err := session.SubmitProfile(ctx, profile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Enter: hablar / enviar · q: salir")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "salir":
				return nil
			case "":
				toggleRecording(cmd, session)
			default:
				fmt.Fprintln(out, "Enter: hablar / enviar · q: salir")
			}
		}
	}
}

type recorder interface {
	State() domain.SessionState
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (domain.RoundTrip, error)
}

// toggleRecording starts a recording from idle and finishes it otherwise.
// Failures are already reported through the event printer.
func toggleRecording(cmd *cobra.Command, session recorder) {
	if session.State() == domain.SessionStateCapturing {
		trip, err := session.StopRecording(cmd.Context())
		if err == nil && trip.Empty {
			fmt.Fprintln(cmd.OutOrStdout(), "(no se ha grabado nada)")
		}
		return
	}
	if err := session.StartRecording(cmd.Context()); errors.Is(err, domain.ErrInvalidState) {
		fmt.Fprintln(cmd.OutOrStdout(), "(espere a que termine la respuesta)")
	}
}
