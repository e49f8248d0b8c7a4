package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"convify/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCollaborator, "transcode", "yt-dlp", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "yt-dlp", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrBusy, "guard", "acquire", "timed out", nil), services.KindBusy},
		{services.Wrap(services.ErrInsufficientResource, "storage", "capacity", "low disk", nil), services.KindInsufficientResource},
		{fmt.Errorf("outer: %w", services.ErrSecurityViolation), services.KindSecurityViolation},
		{services.Wrap(services.ErrNotFound, "metadata", "title", "video missing", nil), services.KindNotFound},
		{services.ErrRateLimited, services.KindRateLimited},
		{services.ErrValidation, services.KindValidation},
		{errors.New("plain"), services.KindInternal},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
