package main

import (
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("YOUTUBE_API_KEY", "from-env")
	path := filepath.Join(home, "convify", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", path})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+path)

	if _, _, err := runCLI(t, []string{"config", "init", "--path", path}); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", path, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"--config", path, "config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+path)
	requireContains(t, out, filepath.Join(home, ".local", "share", "convify", "downloads"))
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRequiresAPIKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("YOUTUBE_API_KEY", "")
	path := filepath.Join(home, "config.toml")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", path}); err != nil {
		t.Fatalf("config init: %v", err)
	}
	_, _, err := runCLI(t, []string{"--config", path, "config", "validate"})
	if err == nil {
		t.Fatal("expected missing api key error")
	}
	requireContains(t, err.Error(), "youtube.api_key is required")
}
