package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxpal/voxpal-go/pkg/cli"
	"github.com/voxpal/voxpal-go/pkg/transcript"
)

var transcriptTail int

var transcriptCmd = &cobra.Command{
	Use:     "transcript",
	Aliases: []string{"transcripts"},
	Short:   "Browse stored conversation transcripts",
	Long: `Browse the transcripts recorded with 'chat --record' and
'talk --record', stored under ~/.voxpal/transcripts.

Examples:
  voxpal transcript list
  voxpal transcript show conv-123
  voxpal transcript show conv-123 --tail 20 --json
  voxpal transcript recordings conv-123
  voxpal transcript clear conv-123`,
}

var transcriptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		convs, err := store.Conversations(ctx)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tENTRIES\tLAST")
		for _, conv := range convs {
			entries, err := store.Entries(ctx, conv)
			if err != nil {
				return err
			}
			last := ""
			if n := len(entries); n > 0 {
				last = cli.FormatTimestamp(entries[n-1].Timestamp)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", conv, len(entries), last)
		}
		w.Flush()
		return nil
	},
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show the entries of one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var entries []transcript.Entry
		if transcriptTail > 0 {
			entries, err = store.Recent(ctx, args[0], transcriptTail)
		} else {
			entries, err = store.Entries(ctx, args[0])
		}
		if err != nil {
			return err
		}

		if isJSONOutput() {
			return outputResult(entries, getOutputFile(), true)
		}

		for _, e := range entries {
			text := e.Text
			if e.Interrupted {
				text += " …"
			}
			fmt.Printf("%s  %-9s  %s\n", cli.FormatTimestamp(e.Timestamp), e.Speaker, text)
		}
		return nil
	},
}

var transcriptClearCmd = &cobra.Command{
	Use:   "clear <conversation-id>",
	Short: "Delete all entries of one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(context.Background(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Conversation %q cleared", args[0])
		return nil
	},
}

var transcriptRecordingsCmd = &cobra.Command{
	Use:   "recordings <conversation-id>",
	Short: "List archived voice recordings of one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := openRecordings()
		if err != nil {
			return err
		}

		ids, err := recs.Recordings(context.Background(), args[0])
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No recordings")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	transcriptShowCmd.Flags().IntVar(&transcriptTail, "tail", 0, "show only the n most recent entries")

	transcriptCmd.AddCommand(transcriptListCmd)
	transcriptCmd.AddCommand(transcriptShowCmd)
	transcriptCmd.AddCommand(transcriptClearCmd)
	transcriptCmd.AddCommand(transcriptRecordingsCmd)
}
