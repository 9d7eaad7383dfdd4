package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxpal/voxpal-go/pkg/audio"
	"github.com/voxpal/voxpal-go/pkg/cli"
	"github.com/voxpal/voxpal-go/pkg/transcript"
	"github.com/voxpal/voxpal-go/pkg/voxlink"
)

var (
	talkRate   int
	talkWait   time.Duration
	talkSave   bool
	talkRecord bool
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Stream a WAV file as one voice turn",
	Long: `Stream a recorded WAV file to the character as one voice turn and
wait for the spoken reply.

The input must be PCM16 mono WAV; it is resampled to the upload rate
before streaming. The reply audio can be written to a WAV file with -o
and archived under ~/.voxpal/recordings with --save.

Examples:
  voxpal -c myctx talk -f question.wav
  voxpal -c myctx talk -f question.wav -o reply.wav --save`,
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().IntVar(&talkRate, "rate", 16000, "upload sample rate in Hz")
	talkCmd.Flags().DurationVar(&talkWait, "wait", 30*time.Second, "how long to wait for the reply")
	talkCmd.Flags().BoolVar(&talkSave, "save", false, "archive the reply audio under ~/.voxpal/recordings")
	talkCmd.Flags().BoolVar(&talkRecord, "record", false, "store the exchange in the local transcript database")
}

// replyCollector assembles the streamed reply: text fragments keyed off
// the response correlator upstream, voice chunks appended in arrival
// order. Handlers run on the client's tick goroutine.
type replyCollector struct {
	mu         sync.Mutex
	text       string
	messageID  string
	pcm        []byte
	sampleRate int
	lastVoice  time.Time
	final      chan struct{}
	finalOnce  sync.Once
}

func newReplyCollector() *replyCollector {
	return &replyCollector{final: make(chan struct{})}
}

func (r *replyCollector) onResponse(ev *voxlink.Event) {
	r.mu.Lock()
	r.text += ev.BotResponse.Text
	r.messageID = ev.BotResponse.MessageID
	final := ev.BotResponse.IsFinal
	r.mu.Unlock()
	if final {
		r.finalOnce.Do(func() { close(r.final) })
	}
}

func (r *replyCollector) onVoice(ev *voxlink.Event) {
	r.mu.Lock()
	r.pcm = append(r.pcm, ev.BotVoice.Audio...)
	if ev.BotVoice.SampleRate > 0 {
		r.sampleRate = ev.BotVoice.SampleRate
	}
	r.lastVoice = time.Now()
	r.mu.Unlock()
}

// quietSince reports how long ago the last voice chunk arrived. Zero time
// means no audio was received yet.
func (r *replyCollector) quietSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastVoice, !r.lastVoice.IsZero()
}

func runTalk(cmd *cobra.Command, args []string) error {
	if getInputFile() == "" {
		return fmt.Errorf("input WAV file is required, use -f flag")
	}
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	f, err := os.Open(getInputFile())
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	pcm, srcRate, err := audio.ReadWAV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read WAV: %w", err)
	}

	rs, err := audio.NewResampler(srcRate, talkRate)
	if err != nil {
		return err
	}
	upload, err := rs.Process(pcm)
	if err != nil {
		return fmt.Errorf("resampling failed: %w", err)
	}
	chunks := audio.EncodeChunks(upload, audio.DefaultChunkBytes)
	printVerbose("Streaming %s: %d Hz -> %d Hz, %d chunks", getInputFile(), srcRate, talkRate, len(chunks))

	var logSink io.Writer = io.Discard
	if verbose {
		logSink = os.Stderr
	}
	logger := voxlink.SlogLogger(slog.New(slog.NewTextHandler(logSink, nil)))
	client := voxlink.New(voxlink.WithLogger(logger))

	reply := newReplyCollector()
	client.Subscribe(voxlink.KindBotResponse, reply.onResponse)
	client.Subscribe(voxlink.KindBotVoice, reply.onVoice)
	client.Subscribe(voxlink.KindError, func(ev *voxlink.Event) {
		cli.PrintError("%v", ev.Err)
	})

	if talkRecord {
		store, err := openTranscripts()
		if err != nil {
			return fmt.Errorf("failed to open transcript store: %w", err)
		}
		defer store.Close()
		rec := transcript.NewRecorder(store, client, logger)
		defer rec.Close()
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds := credentials(cliCtx)
	if err := client.Connect(cliCtx.ServerURL, creds); err != nil {
		return err
	}
	defer client.Disconnect()

	go client.Run(runCtx, 20*time.Millisecond)

	if err := waitConnected(runCtx, client, 15*time.Second); err != nil {
		return err
	}
	session := client.Session()

	// Stream at real-time pace so the bounded outbound queue never has to
	// evict audio.
	chunkDur := time.Duration(audio.DefaultChunkBytes/2) * time.Second / time.Duration(talkRate)
	if err := client.StartVoice(); err != nil {
		return err
	}
	ticker := time.NewTicker(chunkDur)
	defer ticker.Stop()
	for i, chunk := range chunks {
		if err := client.SendAudio(chunk); err != nil {
			return fmt.Errorf("streaming failed at chunk %d: %w", i, err)
		}
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
		}
	}
	if err := client.StopVoice(); err != nil {
		return err
	}
	printVerbose("Voice turn uploaded, waiting for reply")

	// Wait for the final text fragment, then let trailing voice chunks
	// drain until the stream goes quiet.
	select {
	case <-reply.final:
	case <-time.After(talkWait):
		return fmt.Errorf("no reply within %s", cli.FormatDuration(talkWait))
	case <-runCtx.Done():
		return runCtx.Err()
	}
	finalAt := time.Now()
	drainDeadline := finalAt.Add(talkWait)
	for time.Now().Before(drainDeadline) {
		last, any := reply.quietSince()
		if any {
			if time.Since(last) > 1500*time.Millisecond {
				break
			}
		} else if time.Since(finalAt) > 2*time.Second {
			break // text-only reply
		}
		time.Sleep(100 * time.Millisecond)
	}
	client.NotifyPlaybackComplete()

	reply.mu.Lock()
	text, messageID, voice, voiceRate := reply.text, reply.messageID, reply.pcm, reply.sampleRate
	reply.mu.Unlock()
	if voiceRate == 0 {
		voiceRate = creds.PlaybackSampleRate
	}

	result := map[string]any{
		"text":         text,
		"message_id":   messageID,
		"chunks_sent":  len(chunks),
		"audio_bytes":  len(voice),
		"audio_length": cli.FormatBytes(int64(len(voice))),
		"sample_rate":  voiceRate,
	}

	if out := getOutputFile(); out != "" && len(voice) > 0 {
		of, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		werr := audio.WriteWAV(of, voice, voiceRate)
		if cerr := of.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("failed to write reply WAV: %w", werr)
		}
		result["output_file"] = out
	}

	if talkSave && len(voice) > 0 && session != nil && messageID != "" {
		recs, err := openRecordings()
		if err != nil {
			return fmt.Errorf("failed to open recording archive: %w", err)
		}
		var buf bytes.Buffer
		if err := audio.WriteWAV(&buf, voice, voiceRate); err != nil {
			return err
		}
		path, err := recs.Save(runCtx, session.ConversationID, messageID, &buf)
		if err != nil {
			return fmt.Errorf("failed to archive reply: %w", err)
		}
		result["recording"] = path
	}

	return outputResult(result, "", isJSONOutput())
}
