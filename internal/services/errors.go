package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRateLimited          = errors.New("rate limited")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrBusy                 = errors.New("server busy")
	ErrCollaborator         = errors.New("collaborator failure")
	ErrNotFound             = errors.New("not found")
	ErrSecurityViolation    = errors.New("security violation")
	ErrValidation           = errors.New("validation error")
	ErrConfiguration        = errors.New("configuration error")
)

// Kind names persisted on failed jobs and surfaced over the API.
const (
	KindRateLimited          = "rate_limited"
	KindInsufficientResource = "insufficient_resource"
	KindBusy                 = "busy"
	KindCollaborator         = "collaborator_failure"
	KindNotFound             = "not_found"
	KindSecurityViolation    = "security_violation"
	KindValidation           = "validation"
	KindConfiguration        = "configuration"
	KindInternal             = "internal"
)

var kindByMarker = []struct {
	marker error
	kind   string
}{
	{ErrRateLimited, KindRateLimited},
	{ErrInsufficientResource, KindInsufficientResource},
	{ErrBusy, KindBusy},
	{ErrSecurityViolation, KindSecurityViolation},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
	{ErrNotFound, KindNotFound},
	{ErrCollaborator, KindCollaborator},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCollaborator
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err by the first sentinel marker it carries. Errors without a
// marker are reported as internal failures.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range kindByMarker {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	return KindInternal
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
