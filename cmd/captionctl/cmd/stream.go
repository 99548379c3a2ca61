package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

var streamCmd = &cobra.Command{
	Use:   "stream <file.wav>",
	Short: "Start an utterance and upload a WAV file as audio",
	Long: `Starts an utterance, posts the PCM payload of a WAV file to /v1/audio in
fixed-size chunks at real-time pace, then stops the utterance and prints the
committed caption.`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

var (
	streamChunk    int
	streamInterval time.Duration
	streamNoStop   bool
)

func init() {
	// At 8kHz 16-bit mono = 16000 bytes/second, 100ms chunks = 1600 bytes
	streamCmd.Flags().IntVar(&streamChunk, "chunk", 1600, "Bytes per audio frame")
	streamCmd.Flags().DurationVar(&streamInterval, "interval", 100*time.Millisecond, "Delay between frames")
	streamCmd.Flags().BoolVar(&streamNoStop, "no-stop", false, "Leave the utterance running after the upload")
	rootCmd.AddCommand(streamCmd)
}

// wavFormat is the subset of the fmt chunk the stream command checks.
type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func readWAVHeader(r io.Reader) (wavFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavFormat{}, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, errors.New("not a valid WAV file")
	}
	f := wavFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 {
		return f, errors.New("only PCM format supported")
	}
	return f, nil
}

func runStream(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	format, err := readWAVHeader(f)
	if err != nil {
		return err
	}
	log.Info().
		Uint16("channels", format.Channels).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file")
	if format.SampleRate != 8000 {
		log.Warn().Uint32("sampleRate", format.SampleRate).Msg("Expected 8000 Hz audio")
	}

	ctx := cmd.Context()
	client := newAPIClient(serverURL)
	out := cmd.OutOrStdout()

	var started caption
	if err := client.call(ctx, http.MethodPost, "/v1/caption/start", nil, &started); err != nil {
		return fmt.Errorf("start utterance: %w", err)
	}
	fmt.Fprintf(out, "Utterance %s started\n", started.ID)

	chunk := make([]byte, streamChunk)
	var total int64
	var frames int
	begin := time.Now()
	for {
		n, err := io.ReadFull(f, chunk)
		if n > 0 {
			frames++
			total += int64(n)
			if err := client.call(ctx, http.MethodPost, "/v1/audio", chunk[:n], nil); err != nil {
				return fmt.Errorf("send frame %d: %w", frames, err)
			}
			if frames%10 == 0 {
				log.Debug().Int("frames", frames).Int64("bytes", total).Msg("Streaming")
			}
			// Simulate real-time streaming
			time.Sleep(streamInterval)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
	}
	fmt.Fprintf(out, "Sent %d frames, %d bytes in %v\n", frames, total, time.Since(begin).Round(time.Millisecond))

	if streamNoStop {
		return nil
	}

	var stopped struct {
		Committed bool `json:"committed"`
	}
	if err := client.call(ctx, http.MethodPost, "/v1/caption/stop", nil, &stopped); err != nil {
		return fmt.Errorf("stop utterance: %w", err)
	}
	var final caption
	if err := client.call(ctx, http.MethodGet, "/v1/caption", nil, &final); err != nil {
		return err
	}
	fmt.Fprintf(out, "Caption: %s\n", final.Text)
	if stopped.Committed {
		fmt.Fprintln(out, "Committed to history.")
	} else {
		fmt.Fprintln(out, "Not committed.")
	}
	return nil
}
