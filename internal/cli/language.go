package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dwizi/fixdesk/internal/config"
	"github.com/dwizi/fixdesk/internal/settings"
)

func newLanguageCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "language",
		Short: "Show or change the main language",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the main language",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := openSettings(logger)
			if err != nil {
				return err
			}
			cmd.Println(runtime.MainLanguage())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <code>",
		Short: "Persist a new main language, e.g. en or pt-BR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := openSettings(logger)
			if err != nil {
				return err
			}
			code, err := runtime.SetMainLanguage(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("main language set to %s\n", code)
			return nil
		},
	})
	return cmd
}

func openSettings(logger *slog.Logger) (*settings.Runtime, error) {
	return settings.NewRuntime(settings.NewFileStore(config.FromEnv().SettingsPath), logger)
}
