package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxpal/voxpal-go/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple server/character configurations,
similar to kubectl's context management.

Configuration is stored in ~/.voxpal/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  voxpal config add-context myctx --server-url wss://api.voxpal.dev/session --character-id char-milo --player-id dev
  voxpal config add-context prod --server-url wss://api.voxpal.dev/session --api-key KEY --character-id char-milo --player-id p1 --playback-sample-rate 24000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		serverURL, err := cmd.Flags().GetString("server-url")
		if err != nil {
			return fmt.Errorf("failed to read 'server-url' flag: %w", err)
		}
		if serverURL == "" {
			return fmt.Errorf("--server-url is required")
		}

		apiKey, err := cmd.Flags().GetString("api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'api-key' flag: %w", err)
		}
		characterID, err := cmd.Flags().GetString("character-id")
		if err != nil {
			return fmt.Errorf("failed to read 'character-id' flag: %w", err)
		}
		playerID, err := cmd.Flags().GetString("player-id")
		if err != nil {
			return fmt.Errorf("failed to read 'player-id' flag: %w", err)
		}
		sampleRate, err := cmd.Flags().GetInt("playback-sample-rate")
		if err != nil {
			return fmt.Errorf("failed to read 'playback-sample-rate' flag: %w", err)
		}

		ctx := &cli.Context{
			ServerURL:          serverURL,
			APIKey:             apiKey,
			CharacterID:        characterID,
			PlayerID:           playerID,
			PlaybackSampleRate: sampleRate,
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSERVER\tCHARACTER\tPLAYER")

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, ctx.ServerURL, ctx.CharacterID, ctx.PlayerID)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		if len(cfg.Contexts) > 0 {
			fmt.Println("\nContext details:")
			for _, name := range cfg.ListContexts() {
				ctx := cfg.Contexts[name]
				fmt.Printf("\n  %s:\n", name)
				fmt.Printf("    Server URL: %s\n", ctx.ServerURL)
				if ctx.APIKey != "" {
					fmt.Printf("    API Key: %s\n", cli.MaskAPIKey(ctx.APIKey))
				}
				fmt.Printf("    Character: %s\n", ctx.CharacterID)
				fmt.Printf("    Player: %s\n", ctx.PlayerID)
				if ctx.PlaybackSampleRate > 0 {
					fmt.Printf("    Playback Sample Rate: %d Hz\n", ctx.PlaybackSampleRate)
				}
			}
		}

		return nil
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().String("server-url", "", "Session server websocket URL (required)")
	configAddContextCmd.Flags().String("api-key", "", "API key")
	configAddContextCmd.Flags().String("character-id", "", "Character to converse with")
	configAddContextCmd.Flags().String("player-id", "", "Player identity")
	configAddContextCmd.Flags().Int("playback-sample-rate", 0, "Playback sample rate in Hz (default 16000)")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
