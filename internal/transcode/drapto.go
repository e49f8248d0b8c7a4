package transcode

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"convify/internal/logging"
)

// Drapto encodes with the Drapto Go library.
type Drapto struct {
	logger *slog.Logger
}

// NewDrapto constructs a Drapto encoder.
func NewDrapto(logger *slog.Logger) *Drapto {
	return &Drapto{logger: logging.NewComponentLogger(logger, "drapto")}
}

// Encode writes <stem>.mkv into outputDir.
func (d *Drapto) Encode(ctx context.Context, inputPath, outputDir string) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}
	rep := &logReporter{logger: logging.WithContext(ctx, d.logger)}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", err
	}
	return EncodedPath(inputPath, outputDir), nil
}

// EncodedPath mirrors the Drapto output naming rule.
func EncodedPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}

var _ Encoder = (*Drapto)(nil)
