package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxpal/voxpal-go/pkg/cli"
	"github.com/voxpal/voxpal-go/pkg/transcript"
	"github.com/voxpal/voxpal-go/pkg/voxlink"
)

var (
	chatRecord bool
	chatTUI    bool
	chatPrefs  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive text chat with the character",
	Long: `Open an interactive text chat session with the configured character.

Type a message and press enter to send it; the character's reply streams
in as it is generated. Type /quit (or press Ctrl-C) to leave.

Examples:
  voxpal -c myctx chat
  voxpal -c myctx chat --record
  voxpal -c myctx chat --tui
  voxpal -c myctx chat --prefs prefs.yaml`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatRecord, "record", false, "store the conversation in the local transcript database")
	chatCmd.Flags().BoolVar(&chatTUI, "tui", false, "render a full-screen terminal UI")
	chatCmd.Flags().StringVar(&chatPrefs, "prefs", "", "preference file (YAML or JSON) pushed after connecting")
}

// chatScreen accumulates the visible conversation. Event handlers run on
// the client's tick goroutine, so everything is guarded by one mutex.
type chatScreen struct {
	mu      sync.Mutex
	lines   []string
	partial string
	status  string
}

func (s *chatScreen) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *chatScreen) addLine(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (s *chatScreen) appendBot(fragment string, final bool) {
	s.mu.Lock()
	s.partial += fragment
	if final {
		if s.partial != "" {
			s.lines = append(s.lines, "bot: "+s.partial)
		}
		s.partial = ""
	}
	s.mu.Unlock()
}

func (s *chatScreen) interrupt() {
	s.mu.Lock()
	if s.partial != "" {
		s.lines = append(s.lines, "bot: "+s.partial+" …")
	}
	s.partial = ""
	s.mu.Unlock()
}

func (s *chatScreen) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines), len(s.lines)+1)
	copy(out, s.lines)
	if s.partial != "" {
		out = append(out, "bot: "+s.partial)
	}
	return out
}

func runChat(cmd *cobra.Command, args []string) error {
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	screen := &chatScreen{status: "connecting"}
	logBuf := cli.NewLogWriter(200)

	var logSink io.Writer = io.Discard
	if chatTUI {
		logSink = logBuf
	} else if verbose {
		logSink = os.Stderr
	}
	logger := voxlink.SlogLogger(slog.New(slog.NewTextHandler(logSink, nil)))

	client := voxlink.New(voxlink.WithLogger(logger))

	client.Subscribe(voxlink.KindConnected, func(ev *voxlink.Event) {
		screen.setStatus("connected")
		screen.addLine(fmt.Sprintf("* session %s", ev.SessionInfo.ConversationID))
	})
	client.Subscribe(voxlink.KindDisconnected, func(*voxlink.Event) {
		screen.setStatus("disconnected")
	})
	client.Subscribe(voxlink.KindBotResponse, func(ev *voxlink.Event) {
		screen.appendBot(ev.BotResponse.Text, ev.BotResponse.IsFinal)
	})
	client.Subscribe(voxlink.KindInterrupt, func(*voxlink.Event) {
		screen.interrupt()
	})
	client.Subscribe(voxlink.KindError, func(ev *voxlink.Event) {
		screen.addLine("! " + ev.Err.Error())
	})
	client.Subscribe(voxlink.KindQuotaExceeded, func(ev *voxlink.Event) {
		screen.addLine("! quota exceeded: " + ev.Notice.Message)
	})

	// Optional transcript recording.
	if chatRecord {
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

	printVerbose("Connecting to %s", cliCtx.ServerURL)
	if err := client.Connect(cliCtx.ServerURL, credentials(cliCtx)); err != nil {
		return err
	}
	defer client.Disconnect()

	go client.Run(runCtx, 20*time.Millisecond)

	if err := waitConnected(runCtx, client, 15*time.Second); err != nil {
		return err
	}

	if chatPrefs != "" {
		var prefs map[string]any
		if err := cli.LoadRequest(chatPrefs, &prefs); err != nil {
			return fmt.Errorf("failed to load preferences: %w", err)
		}
		if err := client.UpdatePreferences(prefs); err != nil {
			return err
		}
		printVerbose("Preferences pushed from %s", chatPrefs)
	}

	if chatTUI {
		return chatLoopTUI(runCtx, client, screen, logBuf)
	}
	return chatLoopPlain(runCtx, client, screen)
}

// waitConnected blocks until the handshake completes, fails, or the
// context is cancelled.
func waitConnected(ctx context.Context, client *voxlink.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		switch client.State() {
		case voxlink.StateConnected:
			return nil
		case voxlink.StateError:
			return fmt.Errorf("session failed during handshake")
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for session handshake")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// chatLoopPlain is the line-oriented chat loop: stdin lines go out as text
// messages, bot lines are printed as they complete.
func chatLoopPlain(ctx context.Context, client *voxlink.Client, screen *chatScreen) error {
	styles := cli.NewStyles(cli.DefaultTheme)
	cli.PrintInfo("Connected. Type a message, /quit to leave.")

	// Print conversation lines as they appear.
	printCtx, stopPrinting := context.WithCancel(ctx)
	defer stopPrinting()
	go func() {
		seen := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-printCtx.Done():
				return
			case <-ticker.C:
			}
			screen.mu.Lock()
			fresh := screen.lines[seen:]
			seen = len(screen.lines)
			screen.mu.Unlock()
			for _, line := range fresh {
				if rest, ok := strings.CutPrefix(line, "bot: "); ok {
					fmt.Println(styles.Label.Render("bot") + " " + rest)
				} else {
					fmt.Println(styles.Help.Render(line))
				}
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}
		if err := client.SendText(text); err != nil {
			cli.PrintError("send failed: %v", err)
			continue
		}
		screen.addLine("you: " + text)
	}
	return scanner.Err()
}

// chatLoopTUI redraws a full-screen frame while reading stdin lines. The
// frame shows the conversation pane and the client log pane.
func chatLoopTUI(ctx context.Context, client *voxlink.Client, screen *chatScreen, logBuf *cli.LogWriter) error {
	width, height := terminalSize()
	frame := cli.Frame{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "voxpal chat",
		Sections: []cli.Section{
			{Label: " conversation ", Content: screen.snapshot},
			{Label: " log ", Content: logBuf.Lines},
		},
		Help: "type to talk · /quit to leave",
	}

	drawCtx, stopDrawing := context.WithCancel(ctx)
	defer stopDrawing()
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-drawCtx.Done():
				return
			case <-ticker.C:
			}
			screen.mu.Lock()
			frame.Status = screen.status
			screen.mu.Unlock()
			fmt.Print("\033[H\033[2J" + frame.Render(width, height) + "\n")
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}
		if err := client.SendText(text); err != nil {
			screen.addLine("! send failed: " + err.Error())
			continue
		}
		screen.addLine("you: " + text)
	}
	fmt.Print("\033[H\033[2J")
	return scanner.Err()
}

// terminalSize reads COLUMNS/LINES from the environment, falling back to a
// conservative default.
func terminalSize() (width, height int) {
	width, height = 100, 32
	if v, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && v > 20 {
		width = v
	}
	if v, err := strconv.Atoi(os.Getenv("LINES")); err == nil && v > 10 {
		height = v
	}
	return width, height
}
