package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/service/annotate"
	"live-caption-service/internal/service/history"
	"live-caption-service/internal/service/lifecycle"
	"live-caption-service/internal/service/stability"
	"live-caption-service/internal/service/stt"
	"live-caption-service/internal/storage"
)

var replayCmd = &cobra.Command{
	Use:   "replay <transcript>",
	Short: "Feed a transcript file through a local caption pipeline",
	Long: `Replays recognizer hypotheses through an in-process caption controller
on a simulated clock and prints every annotation and commit.

File format, one directive per line:
  text     a hypothesis; starts an utterance if none is running
  +2s      advance the simulated clock
  (blank)  stop the current utterance
  # ...    comment`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayGap     time.Duration
	replayBackend string
	replayPath    string
)

func init() {
	replayCmd.Flags().DurationVar(&replayGap, "gap", 500*time.Millisecond, "Simulated time between hypotheses")
	replayCmd.Flags().StringVar(&replayBackend, "backend", storage.BackendMemory, "History backend: memory, file or sqlite")
	replayCmd.Flags().StringVar(&replayPath, "path", "", "History path for the file and sqlite backends")
	rootCmd.AddCommand(replayCmd)
}

// idleSource is a transcription source that never produces anything; replay
// delivers hypotheses directly.
type idleSource struct{}

func (idleSource) Start(context.Context, stt.Callback) error { return nil }
func (idleSource) Stop() error                               { return nil }

// printSink writes annotations and commits as they happen.
type printSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printSink) LiveUpdated(ev models.CaptionUpdated) {
	if ev.EventType != models.EventCaptionAnnotated {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "annotated: %s\n", ev.Text)
}

func (p *printSink) Committed(ev models.CaptionCommitted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "committed: %s (%s)\n", ev.Text, ev.Reason)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := storage.Open(ctx, storage.Config{Backend: replayBackend, Path: replayPath})
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	hist := history.New(ctx, store, history.WithMetrics(m), history.WithLogger(log.Logger))
	clk := clock.NewMock()
	clk.Set(time.Now())

	ctl := lifecycle.New(idleSource{}, stability.New(clk, stability.DefaultInterval), annotate.NewDefault(), hist,
		lifecycle.WithClock(clk),
		lifecycle.WithMetrics(m),
		lifecycle.WithLogger(log.Logger),
		lifecycle.WithEvents(&printSink{out: cmd.OutOrStdout()}),
	)
	go ctl.Run(ctx)

	if err := replay(ctx, ctl, clk, f); err != nil {
		ctl.Close()
		return err
	}
	if err := ctl.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "history: %d captions\n", hist.Len())
	return nil
}

func replay(ctx context.Context, ctl *lifecycle.Controller, clk *clock.Mock, r io.Reader) error {
	recording := false
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(text, "#"):
			continue
		case text == "":
			if recording {
				if _, err := ctl.StopUtterance(ctx, lifecycle.ReasonStop); err != nil {
					return err
				}
				recording = false
			}
		case strings.HasPrefix(text, "+"):
			d, err := time.ParseDuration(text[1:])
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			advance(ctx, ctl, clk, d)
		default:
			if !recording {
				if _, err := ctl.StartUtterance(ctx); err != nil {
					return err
				}
				recording = true
			}
			if err := ctl.Deliver(ctx, text); err != nil {
				return err
			}
			advance(ctx, ctl, clk, replayGap)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if recording {
		_, err := ctl.StopUtterance(ctx, lifecycle.ReasonStop)
		return err
	}
	return nil
}

// advance moves the simulated clock and lets timer callbacks reach the
// controller before the next directive.
func advance(ctx context.Context, ctl *lifecycle.Controller, clk *clock.Mock, d time.Duration) {
	clk.Add(d)
	time.Sleep(5 * time.Millisecond)
	_, _ = ctl.Snapshot(ctx)
}
