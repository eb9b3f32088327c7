/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// pointAtConfig writes content as the config file and points the
// loader at it for the duration of the test.
func pointAtConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "research.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nonexistent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB != "./research.sqlite" {
		t.Errorf("expected default DB path but got %q", cfg.DB)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc != time.UTC {
		t.Errorf("expected UTC default but got %v", loc)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	pointAtConfig(t, `
db: /var/lib/research/library.sqlite
timezone: Europe/Berlin
pocket:
  consumer_key: file-ck
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB != "/var/lib/research/library.sqlite" {
		t.Errorf("expected file DB path but got %q", cfg.DB)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Errorf("expected file timezone but got %q", cfg.Timezone)
	}
	if cfg.Pocket.ConsumerKey != "file-ck" {
		t.Errorf("expected file consumer key but got %q", cfg.Pocket.ConsumerKey)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	pointAtConfig(t, `
db: /from/file.sqlite
pocket:
  consumer_key: file-ck
  access_token: file-at
`)
	t.Setenv("RESEARCH_DB", "/from/env.sqlite")
	t.Setenv("RESEARCH_POCKET_CONSUMER_KEY", "env-ck")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB != "/from/env.sqlite" {
		t.Errorf("expected env to beat file, got %q", cfg.DB)
	}
	if cfg.Pocket.ConsumerKey != "env-ck" {
		t.Errorf("expected env consumer key, got %q", cfg.Pocket.ConsumerKey)
	}
	// untouched by env, so the file value survives
	if cfg.Pocket.AccessToken != "file-at" {
		t.Errorf("expected file access token to survive, got %q", cfg.Pocket.AccessToken)
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := &Config{Timezone: "Neverland/Nowhere"}
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for unknown timezone, got none")
	}
}
