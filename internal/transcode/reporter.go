package transcode

import (
	"log/slog"

	draptolib "github.com/five82/drapto"

	"convify/internal/logging"
)

// logReporter forwards Drapto progress events to the job logger. Progress is
// logged at debug level in 10 percent steps.
type logReporter struct {
	logger      *slog.Logger
	lastPercent int
}

func (r *logReporter) Hardware(draptolib.HardwareSummary) {}

func (r *logReporter) Initialization(draptolib.InitializationSummary) {
	r.logger.Info("encode initialized", logging.String(logging.FieldEventType, "encode_initialized"))
}

func (r *logReporter) StageProgress(s draptolib.StageProgress) {
	r.logger.Debug("encode stage",
		logging.String("encode_stage", s.Stage),
		logging.String("detail", s.Message),
		logging.Float64("percent", float64(s.Percent)),
	)
}

func (r *logReporter) CropResult(draptolib.CropSummary) {}

func (r *logReporter) EncodingConfig(draptolib.EncodingConfigSummary) {}

func (r *logReporter) EncodingStarted(totalFrames uint64) {
	r.logger.Info("encoding started", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *logReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	percent := int(s.Percent)
	if percent < r.lastPercent+10 {
		return
	}
	r.lastPercent = percent - percent%10
	r.logger.Debug("encoding progress", logging.Int("percent", percent))
}

func (r *logReporter) ValidationComplete(draptolib.ValidationSummary) {}

func (r *logReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("encoding complete",
		logging.String("path", s.OutputPath),
		logging.String(logging.FieldEventType, "encode_complete"),
	)
}

func (r *logReporter) Warning(message string) {
	logging.WarnWithContext(r.logger, message, "encode_warning",
		logging.String(logging.FieldImpact, "encode continues"),
	)
}

func (r *logReporter) Error(e draptolib.ReporterError) {
	logging.ErrorWithContext(r.logger, "encode error", "encode_error",
		logging.String("title", e.Title),
		logging.String("detail", e.Message),
		logging.String(logging.FieldErrorHint, e.Suggestion),
	)
}

func (r *logReporter) OperationComplete(string) {}

func (r *logReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *logReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *logReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*logReporter)(nil)
