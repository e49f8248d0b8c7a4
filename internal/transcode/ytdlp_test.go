package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

func stubCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		output := ""
		if idx := findArg(args, "-o"); idx >= 0 && idx+1 < len(args) {
			output = args[idx+1]
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "YTDLP_HELPER_MODE="+mode, "YTDLP_HELPER_OUTPUT="+output)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestBuildArgs(t *testing.T) {
	mp3 := BuildArgs(jobs.FormatMP3, "/out/a.mp3", "https://youtu.be/x")
	wantMP3 := []string{"--no-check-certificate", "-o", "/out/a.mp3", "--extract-audio", "--audio-format", "mp3", "--audio-quality", "0", "https://youtu.be/x"}
	if !reflect.DeepEqual(mp3, wantMP3) {
		t.Fatalf("mp3 args = %v", mp3)
	}
	mp4 := BuildArgs(jobs.FormatMP4, "/out/a.mp4", "https://youtu.be/x")
	if idx := findArg(mp4, "--merge-output-format"); idx < 0 || mp4[idx+1] != "mp4" {
		t.Fatalf("mp4 args missing merge format: %v", mp4)
	}
	if idx := findArg(mp4, "-f"); idx < 0 || mp4[idx+1] != "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]" {
		t.Fatalf("mp4 args missing format selector: %v", mp4)
	}
	if mp4[len(mp4)-1] != "https://youtu.be/x" {
		t.Fatalf("source must be last: %v", mp4)
	}
}

func TestTranscodeMP3Success(t *testing.T) {
	var captured []string
	stubCommand(t, "success", &captured)
	dir := t.TempDir()
	y := NewYtDlp("/usr/local/bin/yt-dlp", dir, nil, logging.NewNop())

	path, err := y.Transcode(context.Background(), Request{Source: "https://youtu.be/x", Format: jobs.FormatMP3, Stem: "Song"})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if want := filepath.Join(dir, "Song.mp3"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if captured[0] != "/usr/local/bin/yt-dlp" {
		t.Fatalf("binary = %q", captured[0])
	}
}

func TestTranscodeFailsWhenToolExitsNonZero(t *testing.T) {
	stubCommand(t, "failure", nil)
	y := NewYtDlp("", t.TempDir(), nil, nil)
	_, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMP4, Stem: "Clip"})
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "video unavailable") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
}

func TestTranscodeFailsWhenOutputMissing(t *testing.T) {
	stubCommand(t, "silent", nil)
	y := NewYtDlp("", t.TempDir(), nil, nil)
	_, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMP3, Stem: "Ghost"})
	if !errors.Is(err, services.ErrCollaborator) || !strings.Contains(err.Error(), "File not found") {
		t.Fatalf("expected missing output failure, got %v", err)
	}
}

type fakeEncoder struct {
	input string
	err   error
}

func (f *fakeEncoder) Encode(_ context.Context, inputPath, outputDir string) (string, error) {
	f.input = inputPath
	if f.err != nil {
		return "", f.err
	}
	out := EncodedPath(inputPath, outputDir)
	if err := os.WriteFile(out, []byte("mkv"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func TestTranscodeMKVEncodesAndRemovesIntermediate(t *testing.T) {
	var captured []string
	stubCommand(t, "success", &captured)
	dir := t.TempDir()
	enc := &fakeEncoder{}
	y := NewYtDlp("", dir, enc, nil)

	path, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMKV, Stem: "Film"})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if path != filepath.Join(dir, "Film.mkv") {
		t.Fatalf("path = %q", path)
	}
	if filepath.Base(enc.input) != "Film.mp4" || filepath.Dir(enc.input) == dir {
		t.Fatalf("encoder input = %q, want Film.mp4 in a work directory", enc.input)
	}
	if findArg(captured, "--merge-output-format") < 0 {
		t.Fatalf("mkv should download with mp4 args: %v", captured)
	}
	if _, err := os.Stat(enc.input); !os.IsNotExist(err) {
		t.Fatalf("expected intermediate removed, stat err=%v", err)
	}
	requireOnlyEntries(t, dir, "Film.mkv")
}

func TestTranscodeMKVKeepsExistingMP4WithSameStem(t *testing.T) {
	stubCommand(t, "success", nil)
	dir := t.TempDir()
	y := NewYtDlp("", dir, &fakeEncoder{}, nil)

	mp4, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMP4, Stem: "Film"})
	if err != nil {
		t.Fatalf("Transcode mp4: %v", err)
	}
	if err := os.WriteFile(mp4, []byte("finished mp4"), 0o644); err != nil {
		t.Fatalf("seed mp4: %v", err)
	}
	if _, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMKV, Stem: "Film"}); err != nil {
		t.Fatalf("Transcode mkv: %v", err)
	}

	data, err := os.ReadFile(mp4)
	if err != nil {
		t.Fatalf("mp4 result removed by mkv job: %v", err)
	}
	if string(data) != "finished mp4" {
		t.Fatalf("mp4 result overwritten: %q", data)
	}
	requireOnlyEntries(t, dir, "Film.mkv", "Film.mp4")
}

func requireOnlyEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var got []string
	for _, entry := range entries {
		got = append(got, entry.Name())
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
}

func TestTranscodeMKVRequiresEncoder(t *testing.T) {
	y := NewYtDlp("", t.TempDir(), nil, nil)
	_, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMKV, Stem: "Film"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscodeMKVEncoderFailure(t *testing.T) {
	stubCommand(t, "success", nil)
	dir := t.TempDir()
	y := NewYtDlp("", dir, &fakeEncoder{err: errors.New("svt crashed")}, nil)
	_, err := y.Transcode(context.Background(), Request{Source: "u", Format: jobs.FormatMKV, Stem: "Film"})
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator failure, got %v", err)
	}
	requireOnlyEntries(t, dir)
}

func TestEncodedPath(t *testing.T) {
	if got := EncodedPath("/a/b/movie.mp4", "/out"); got != "/out/movie.mkv" {
		t.Fatalf("EncodedPath = %q", got)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "success":
		if out := os.Getenv("YTDLP_HELPER_OUTPUT"); out != "" {
			if err := os.WriteFile(out, []byte("media"), 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "ERROR: video unavailable")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
