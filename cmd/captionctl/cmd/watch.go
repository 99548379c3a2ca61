package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"live-caption-service/internal/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow caption events on Kafka",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var (
	watchBrokers        string
	watchTopicLive      string
	watchTopicCommitted string
	watchSince          time.Duration
	watchCommittedOnly  bool
)

func init() {
	watchCmd.Flags().StringVar(&watchBrokers, "brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "Kafka brokers (comma-separated)")
	watchCmd.Flags().StringVar(&watchTopicLive, "topic-live", envOr("KAFKA_TOPIC_LIVE", "caption.live.v1"), "Live caption topic")
	watchCmd.Flags().StringVar(&watchTopicCommitted, "topic-committed", envOr("KAFKA_TOPIC_COMMITTED", "caption.history.v1"), "Committed caption topic")
	watchCmd.Flags().DurationVar(&watchSince, "since", time.Hour, "Replay events newer than this")
	watchCmd.Flags().BoolVar(&watchCommittedOnly, "committed-only", false, "Only show committed captions")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := &lockedWriter{w: cmd.OutOrStdout()}
	brokers := strings.Split(watchBrokers, ",")

	topics := []string{watchTopicCommitted}
	if !watchCommittedOnly {
		topics = append(topics, watchTopicLive)
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			consume(ctx, out, brokers, topic)
		}(topic)
	}
	wg.Wait()
	return nil
}

func consume(ctx context.Context, out io.Writer, brokers []string, topic string) {
	// Use partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-watchSince)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Could not seek, reading from the start")
	}
	log.Info().Str("topic", topic).Msg("Consuming caption events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}
		fmt.Fprintln(out, formatEvent(msg))
	}
}

// formatEvent renders one Kafka message as a single line.
func formatEvent(msg kafka.Message) string {
	var eventType string
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			eventType = string(h.Value)
		}
	}

	ts := msg.Time.Local().Format("15:04:05.000")
	switch eventType {
	case models.EventCaptionCommitted:
		var ev models.CaptionCommitted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Sprintf("%s  ! bad %s payload: %v", ts, eventType, err)
		}
		return fmt.Sprintf("%s  ✔ %s  %s (%s)", ts, short(ev.CaptionID), ev.Text, ev.Reason)
	case models.EventCaptionUpdated, models.EventCaptionAnnotated:
		var ev models.CaptionUpdated
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Sprintf("%s  ! bad %s payload: %v", ts, eventType, err)
		}
		marker := "…"
		if eventType == models.EventCaptionAnnotated {
			marker = "★"
		}
		return fmt.Sprintf("%s  %s %s  g%d %s", ts, marker, short(ev.CaptionID), ev.Generation, ev.Text)
	default:
		return fmt.Sprintf("%s  ? %s %s", ts, eventType, string(msg.Value))
	}
}

func short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
