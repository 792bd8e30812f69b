// Package frame extracts still frames from video media by shelling out to
// ffmpeg.
package frame

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"clearmark/internal/domain"
	"clearmark/internal/infra"
)

var commandContext = exec.CommandContext

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// Frame is a single still extracted from a video.
type Frame struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Options configures the extractor.
type Options struct {
	// FFmpegPath overrides the binary resolved from PATH.
	FFmpegPath string
	Logger     *infra.Logger
}

// Extractor pulls the first frame of a video as a PNG.
type Extractor struct {
	binary string
	logger *infra.Logger
}

func NewExtractor(opts Options) *Extractor {
	binary := strings.TrimSpace(opts.FFmpegPath)
	if binary == "" {
		binary = "ffmpeg"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Extractor{binary: binary, logger: logger}
}

// FirstFrame spools the video to a scratch directory, asks ffmpeg for the
// first frame, and returns it with its decoded dimensions. Any ffmpeg
// failure or unusable output surfaces as domain.ErrFrameExtraction.
func (e *Extractor) FirstFrame(ctx context.Context, src io.Reader) (*Frame, error) {
	dir, err := os.MkdirTemp("", "clearmark-frame-*")
	if err != nil {
		return nil, fmt.Errorf("frame: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.bin")
	file, err := os.Create(input)
	if err != nil {
		return nil, fmt.Errorf("frame: spool file: %w", err)
	}
	if _, err := io.Copy(file, src); err != nil {
		file.Close()
		return nil, fmt.Errorf("frame: %w: spool input: %v", domain.ErrReadSource, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("frame: close spool: %w", err)
	}

	output := filepath.Join(dir, "frame.png")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-frames:v", "1",
		"-f", "image2",
		output,
	}
	cmd := commandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := stderrTail(stderr.Bytes())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("frame: %w: %s", domain.ErrFrameExtraction, detail)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("frame: %w: no frame produced", domain.ErrFrameExtraction)
	}
	width, height, err := pngDimensions(data)
	if err != nil {
		return nil, fmt.Errorf("frame: %w: %v", domain.ErrFrameExtraction, err)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("frame: %w: frame is %dx%d", domain.ErrFrameExtraction, width, height)
	}

	e.logger.Debug().
		Int("width", width).
		Int("height", height).
		Int("bytes", len(data)).
		Msg("frame: extracted first frame")
	return &Frame{Data: data, MIME: "image/png", Width: width, Height: height}, nil
}

// pngDimensions reads width and height from the IHDR chunk without decoding
// the image.
func pngDimensions(data []byte) (int, int, error) {
	if len(data) < 24 {
		return 0, 0, fmt.Errorf("png too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:8], pngSignature) {
		return 0, 0, fmt.Errorf("not a png")
	}
	if string(data[12:16]) != "IHDR" {
		return 0, 0, fmt.Errorf("missing IHDR chunk")
	}
	width := binary.BigEndian.Uint32(data[16:20])
	height := binary.BigEndian.Uint32(data[20:24])
	return int(width), int(height), nil
}

// stderrTail keeps the last few lines of ffmpeg output so errors stay
// readable.
func stderrTail(out []byte) string {
	text := strings.TrimSpace(string(out))
	if len(text) <= 512 {
		return text
	}
	return "..." + text[len(text)-512:]
}
