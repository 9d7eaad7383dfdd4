package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/voxpal/voxpal-go/pkg/cli"
	"github.com/voxpal/voxpal-go/pkg/voxlink"
)

var (
	eventsFilter    string
	eventsDuration  time.Duration
	eventsWithAudio bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Watch the raw session event stream",
	Long: `Connect and print every session event as one JSON object per line,
for debugging a character backend.

Events can be narrowed with a jq expression; an event is printed when the
expression yields a truthy value, and the expression's output replaces
the event when it yields an object or string.

Voice payloads are elided by default (audio_bytes reports the size); pass
--with-audio to keep the base64 audio in the stream.

Examples:
  voxpal -c myctx events
  voxpal -c myctx events --filter '.kind == "bot_response"'
  voxpal -c myctx events --filter 'select(.kind == "transcript") | .payload.text'
  voxpal -c myctx events --duration 30s --json`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsFilter, "filter", "", "jq expression applied to each event")
	eventsCmd.Flags().DurationVar(&eventsDuration, "duration", 0, "stop after this long (default: until interrupted)")
	eventsCmd.Flags().BoolVar(&eventsWithAudio, "with-audio", false, "keep base64 audio payloads in the stream")
}

// eventToValue flattens an event into the plain JSON value shape gojq
// operates on.
func eventToValue(ev *voxlink.Event) (map[string]any, error) {
	m := map[string]any{
		"kind": ev.Kind.String(),
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	}

	var payload any
	switch {
	case ev.SessionInfo != nil:
		payload = ev.SessionInfo
	case ev.BotResponse != nil:
		payload = ev.BotResponse
	case ev.BotVoice != nil:
		if eventsWithAudio {
			payload = ev.BotVoice
		} else {
			payload = map[string]any{
				"audio_bytes": len(ev.BotVoice.Audio),
				"sampleRate":  ev.BotVoice.SampleRate,
				"chunkIndex":  ev.BotVoice.ChunkIndex,
				"messageId":   ev.BotVoice.MessageID,
			}
		}
	case ev.Transcript != nil:
		payload = ev.Transcript
	case ev.Interrupt != nil:
		payload = ev.Interrupt
	case ev.Notice != nil:
		payload = ev.Notice
	case ev.CameraCapture != nil:
		payload = ev.CameraCapture
	case ev.Err != nil:
		payload = map[string]any{"code": ev.Err.Code, "message": ev.Err.Message}
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		m["payload"] = v
	}
	return m, nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	var query *gojq.Query
	if eventsFilter != "" {
		query, err = gojq.Parse(eventsFilter)
		if err != nil {
			return fmt.Errorf("invalid jq expression %q: %w", eventsFilter, err)
		}
	}

	out := os.Stdout
	if path := getOutputFile(); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)

	var logSink io.Writer = io.Discard
	if verbose {
		logSink = os.Stderr
	}
	client := voxlink.New(voxlink.WithLogger(
		voxlink.SlogLogger(slog.New(slog.NewTextHandler(logSink, nil)))))

	emit := func(ev *voxlink.Event) {
		v, err := eventToValue(ev)
		if err != nil {
			cli.PrintError("encode event: %v", err)
			return
		}
		if query == nil {
			enc.Encode(v)
			return
		}
		iter := query.Run(any(v))
		for {
			next, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := next.(error); ok {
				cli.PrintError("filter: %v", err)
				continue
			}
			switch r := next.(type) {
			case nil:
			case bool:
				if r {
					enc.Encode(v)
				}
			default:
				enc.Encode(next)
			}
		}
	}

	for kind := voxlink.KindConnected; kind <= voxlink.KindCameraCapture; kind++ {
		client.Subscribe(kind, emit)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if eventsDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, eventsDuration)
		defer cancel()
	}

	if err := client.Connect(cliCtx.ServerURL, credentials(cliCtx)); err != nil {
		return err
	}
	defer client.Disconnect()

	client.Run(runCtx, 20*time.Millisecond)
	return nil
}
