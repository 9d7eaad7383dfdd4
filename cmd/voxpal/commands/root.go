package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxpal/voxpal-go/pkg/archive"
	"github.com/voxpal/voxpal-go/pkg/cli"
	"github.com/voxpal/voxpal-go/pkg/transcript"
	"github.com/voxpal/voxpal-go/pkg/voxlink"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voxpal",
	Short: "VoxPal realtime session CLI",
	Long: `VoxPal CLI - talk to a VoxPal character from the terminal.

This tool drives a realtime character session over the VoxPal session
protocol:
  - Interactive text chat
  - Streaming a recorded voice turn from a WAV file
  - Watching the raw event stream
  - Browsing stored transcripts and voice recordings

Configuration is stored in ~/.voxpal/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a new context
  voxpal config add-context myctx --server-url wss://api.voxpal.dev/session --character-id char-milo --player-id dev

  # Chat with the character
  voxpal -c myctx chat

  # Stream a voice turn and save the reply
  voxpal -c myctx talk -f question.wav -o reply.wav

  # Pipe filtered events to another command
  voxpal -c myctx events --filter '.kind == "bot_response"' | head
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.voxpal/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input file (WAV audio or YAML/JSON request)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(talkCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(transcriptCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'voxpal config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// getInputFile returns the input file path
func getInputFile() string {
	return inputFile
}

// getOutputFile returns the output file path
func getOutputFile() string {
	return outputFile
}

// isJSONOutput returns whether output should be JSON
func isJSONOutput() bool {
	return outputJSON
}

// outputResult outputs the result using cli package
func outputResult(result any, outputPath string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputPath,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}

// credentials builds session credentials from a context. The playback rate
// falls back to 16 kHz, the rate the embedded hosts use.
func credentials(ctx *cli.Context) voxlink.Credentials {
	rate := ctx.PlaybackSampleRate
	if rate == 0 {
		rate = 16000
	}
	return voxlink.Credentials{
		APIKey:             ctx.APIKey,
		CharacterID:        ctx.CharacterID,
		PlayerID:           ctx.PlayerID,
		PlaybackSampleRate: rate,
	}
}

// openTranscripts opens the on-disk transcript store under ~/.voxpal.
func openTranscripts() (*transcript.Badger, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureTranscriptDir(); err != nil {
		return nil, err
	}
	return transcript.NewBadger(transcript.BadgerOptions{Dir: paths.TranscriptDir()})
}

// openRecordings opens the local voice recording archive under ~/.voxpal.
func openRecordings() (*archive.Archive, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureRecordingsDir(); err != nil {
		return nil, err
	}
	store, err := archive.NewLocal(paths.RecordingsDir())
	if err != nil {
		return nil, err
	}
	return archive.New(store), nil
}
