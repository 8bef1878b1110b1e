package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"vozchat/internal/domain"
	"vozchat/internal/usecase"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Submit a user profile and hear the welcome message",
		Long:  "Submit the user profile to the assistant. Fields come from flags or from a YAML file (--file); flags win over the file.",
		RunE:  runProfile,
	}
	addProfileFlags(cmd)
	cmd.Flags().Bool("no-wait", false, "Return without waiting for the welcome audio to finish")

	RootCmd.AddCommand(cmd)
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("nombre", "", "Full name (Ej: Samuel Sánchez Carrasco)")
	cmd.Flags().String("edad", "", "Age (Ej: 75)")
	cmd.Flags().String("lugar", "", "Birthplace (Ej: Torredonjimeno)")
	cmd.Flags().String("familiares", "", "Relatives (Ej: Adrián (Nieto), Alba (Nieta))")
	cmd.Flags().String("gustos", "", "Interests (Ej: Leer, Jugar al ajedrez)")
	cmd.Flags().String("file", "", "YAML file with nombre, edad, lugarNacimiento, familiares and gustos")
}

// readProfile merges the YAML file and the flags. ok is false when neither
// provided anything.
func readProfile(cmd *cobra.Command) (profile domain.ProfileData, ok bool, err error) {
	if path, _ := cmd.Flags().GetString("file"); strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.ProfileData{}, false, fmt.Errorf("read profile file: %w", err)
		}
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return domain.ProfileData{}, false, fmt.Errorf("parse profile file %s: %w", path, err)
		}
		ok = true
	}

	overrides := []struct {
		flag  string
		field *string
	}{
		{"nombre", &profile.FullName},
		{"edad", &profile.Age},
		{"lugar", &profile.Birthplace},
		{"familiares", &profile.Relatives},
		{"gustos", &profile.Interests},
	}
	for _, o := range overrides {
		if value, _ := cmd.Flags().GetString(o.flag); strings.TrimSpace(value) != "" {
			*o.field = strings.TrimSpace(value)
			ok = true
		}
	}
	return profile, ok, nil
}

func runProfile(cmd *cobra.Command, _ []string) error {
	profile, ok, err := readProfile(cmd)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no profile given: use --nombre and friends or --file")
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	services, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer services.Session.Dispose()

	if _, err := services.Session.SubmitProfile(cmd.Context(), profile); err != nil {
		return err
	}

	if noWait, _ := cmd.Flags().GetBool("no-wait"); !noWait {
		waitForPlayback(cmd.Context(), services.Session)
	}
	return nil
}

// waitForPlayback blocks while reply audio is playing.
func waitForPlayback(ctx context.Context, session *usecase.ChatSession) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for session.Status().Playing {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
