package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

// commandContext allows tests to replace process execution.
var commandContext = exec.CommandContext

// Request describes one conversion.
type Request struct {
	Source string
	Format jobs.Format
	// Stem is the sanitized output file name without extension.
	Stem string
}

// Encoder re-encodes a downloaded file into outputDir and returns the result path.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string) (string, error)
}

// YtDlp downloads and converts media with yt-dlp.
type YtDlp struct {
	binary    string
	outputDir string
	encoder   Encoder
	logger    *slog.Logger
}

// NewYtDlp builds a transcoder writing into outputDir. encoder may be nil, in
// which case the mkv format is rejected.
func NewYtDlp(binary, outputDir string, encoder Encoder, logger *slog.Logger) *YtDlp {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{
		binary:    binary,
		outputDir: outputDir,
		encoder:   encoder,
		logger:    logging.NewComponentLogger(logger, "transcode"),
	}
}

// BuildArgs returns the yt-dlp arguments for format writing to output.
func BuildArgs(format jobs.Format, output, source string) []string {
	args := []string{"--no-check-certificate", "-o", output}
	if format == jobs.FormatMP3 {
		args = append(args, "--extract-audio", "--audio-format", "mp3", "--audio-quality", "0")
	} else {
		args = append(args, "-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]", "--merge-output-format", "mp4")
	}
	return append(args, source)
}

// Transcode runs yt-dlp and, for mkv, the AV1 encoder. It returns the path of
// the finished file.
func (y *YtDlp) Transcode(ctx context.Context, req Request) (string, error) {
	stem := strings.TrimSpace(req.Stem)
	if stem == "" {
		return "", services.Wrap(services.ErrValidation, "transcode", "", "output name is empty", nil)
	}
	if req.Format == jobs.FormatMKV && y.encoder == nil {
		return "", services.Wrap(services.ErrValidation, "transcode", "mkv", "AV1 encoding is disabled", nil)
	}

	if req.Format == jobs.FormatMKV {
		return y.transcodeMKV(ctx, req.Source, stem)
	}
	target := filepath.Join(y.outputDir, stem+"."+string(req.Format))
	if err := y.download(ctx, req.Format, target, req.Source); err != nil {
		return "", err
	}
	return target, nil
}

// transcodeMKV downloads mp4 into a private work directory under the output
// root and encodes it to <stem>.mkv. Only the work directory is removed, so
// finished files of other jobs are never touched.
func (y *YtDlp) transcodeMKV(ctx context.Context, source, stem string) (string, error) {
	workDir, err := os.MkdirTemp(y.outputDir, ".convify-work-")
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "transcode", "mkv", "create work directory", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, y.logger), "work directory not removed", "intermediate_cleanup_failed",
				logging.String("path", workDir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check output_dir permissions"),
				logging.String(logging.FieldImpact, "intermediate file remains until the retention sweep"),
			)
		}
	}()

	intermediate := filepath.Join(workDir, stem+"."+string(jobs.FormatMP4))
	if err := y.download(ctx, jobs.FormatMP4, intermediate, source); err != nil {
		return "", err
	}

	encoded, err := y.encoder.Encode(ctx, intermediate, y.outputDir)
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "transcode", "drapto", "AV1 encode failed", err)
	}
	if _, err := os.Stat(encoded); err != nil {
		return "", services.Wrap(services.ErrCollaborator, "transcode", "drapto", "encoded file missing", err)
	}
	return encoded, nil
}

func (y *YtDlp) download(ctx context.Context, format jobs.Format, target, source string) error {
	logger := logging.WithContext(ctx, y.logger)
	started := time.Now()
	if err := y.run(ctx, BuildArgs(format, target, source)); err != nil {
		return err
	}
	if _, err := os.Stat(target); err != nil {
		return services.Wrap(services.ErrCollaborator, "transcode", "yt-dlp",
			"File not found after conversion. Conversion tool might have failed silently.", err)
	}
	logger.Info("download complete",
		logging.String("path", target),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "download_complete"),
	)
	return nil
}

func (y *YtDlp) run(ctx context.Context, args []string) error {
	cmd := commandContext(ctx, y.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrCollaborator, "transcode", "yt-dlp", "cancelled", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return services.Wrap(services.ErrCollaborator, "transcode", "yt-dlp",
			fmt.Sprintf("Command failed: %s", detail), err)
	}
	return nil
}
