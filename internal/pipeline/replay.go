package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

const maxReplayLineBytes = 4 << 20

// ReplaySource reads ticks from a JSON-lines file, one encoded tick per line.
func ReplaySource(path string) SourceFactory {
	return func(output chan<- []byte, logger *zap.Logger) (Source, error) {
		return &Replay{path: path, output: output, logger: logger}, nil
	}
}

// Replay feeds a recorded tick file through the pipeline at full speed.
type Replay struct {
	path   string
	output chan<- []byte
	logger *zap.Logger
}

func (r *Replay) Run(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReplayReadFailed, err)
	}
	defer f.Close()

	r.logger.Info("Replaying ticks", zap.String("path", r.path))
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLineBytes)

	lines := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines++
		// The scanner reuses its buffer.
		msg := append([]byte(nil), line...)
		select {
		case r.output <- msg:
		case <-ctx.Done():
			return context.Canceled
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrReplayReadFailed, lines+1, err)
	}
	r.logger.Info("Replay finished", zap.Int("messages", lines))
	return nil
}
