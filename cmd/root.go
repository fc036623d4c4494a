package cmd

import (
	"context"
	"os"
	"os/signal"

	"travel_agent/src"
	"travel_agent/src/channel"
	"travel_agent/src/logger"
	"travel_agent/src/session"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	userID    string
	newUserID string
	listUsers bool
)

var rootCmd = &cobra.Command{
	Use:   "travel_agent",
	Short: "Conversational travel planning assistant",
	Long: `travel_agent gets to know how you like to travel over a short chat,
remembers it between sessions and suggests where to go next.

Start without flags to get a new user id, or resume with --user-id.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "dialogue config yaml (overrides DIALOGUE_CONFIG)")
	rootCmd.Flags().StringVar(&userID, "user-id", "", "resume the profile of an existing user id")
	rootCmd.Flags().StringVar(&newUserID, "new-user-id", "", "start a new profile under this 3-digit id (100-999)")
	rootCmd.Flags().BoolVar(&listUsers, "list-users", false, "list stored user profiles and exit")
	rootCmd.MarkFlagsMutuallyExclusive("user-id", "new-user-id")
}

func runRoot(cmd *cobra.Command, _ []string) error {
	// Invalid ids are rejected before anything is opened
	if newUserID != "" {
		if err := session.ValidateNewUserID(newUserID); err != nil {
			return err
		}
	}

	cfg, err := src.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	closer, err := logger.InitLogger(cfg.LogConfig)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := openStore(cfg.StoreConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	if listUsers {
		return printUsers(ctx, store, cmd.OutOrStdout())
	}

	a, err := newApp(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.chat(ctx, channel.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout()), cmd.ErrOrStderr(), startOptions{
		UserID:    userID,
		NewUserID: newUserID,
	})
}
