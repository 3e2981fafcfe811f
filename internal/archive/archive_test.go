package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/USA-RedDragon/crashgate/internal/archive"
	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/storage"
	"github.com/USA-RedDragon/crashgate/internal/symbols"
	"github.com/USA-RedDragon/crashgate/internal/upload"
	"github.com/klauspost/compress/zip"
)

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	cfg := &config.Config{}
	cfg.Persistence.Archive.Driver = config.ArchiveDriverFilesystem
	cfg.Persistence.Archive.Directory = t.TempDir()
	store, err := storage.NewStorage(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newBatch(t *testing.T, files map[string]string) upload.Batch {
	t.Helper()
	dir := t.TempDir()
	batch := upload.Batch{Database: "fred", Application: "Space/Game", Version: "1.0"}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	artifacts, err := symbols.Discover(dir, []string{".dll", ".pdb"})
	if err != nil {
		t.Fatal(err)
	}
	batch.Artifacts = artifacts
	return batch
}

func TestArchive(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	batch := newBatch(t, map[string]string{
		"game.dll":     "dll bytes",
		"game.pdb":     "pdb bytes",
		"sub/game.dll": "other dll",
	})

	manifest, err := archive.New(store).Archive(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(manifest.Key, "fred/Space_Game/1.0/") || !strings.HasSuffix(manifest.Key, ".zip") {
		t.Errorf("unexpected key %s", manifest.Key)
	}
	if len(manifest.Files) != 3 {
		t.Fatalf("unexpected manifest files %v", manifest.Files)
	}

	names := map[string]bool{}
	for _, f := range manifest.Files {
		names[f.Name] = true
		if len(f.BLAKE3) != 64 {
			t.Errorf("unexpected digest %q", f.BLAKE3)
		}
	}
	if !names["game.dll"] || !names["game-2.dll"] || !names["game.pdb"] {
		t.Errorf("entry names not unique: %v", names)
	}

	file, err := store.Open(manifest.Key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(file)
	file.Close()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("archive is not a zip: %v", err)
	}
	contents := map[string]string{}
	for _, entry := range zr.File {
		rc, err := entry.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		contents[entry.Name] = string(b)
	}
	if contents["game.pdb"] != "pdb bytes" {
		t.Errorf("unexpected entry content %q", contents["game.pdb"])
	}
	var embedded archive.Manifest
	if err := json.Unmarshal([]byte(contents["manifest.json"]), &embedded); err != nil {
		t.Fatalf("manifest entry missing or invalid: %v", err)
	}
	if embedded.ID != manifest.ID {
		t.Errorf("embedded manifest id %s, want %s", embedded.ID, manifest.ID)
	}

	sidecar, err := store.Open(strings.TrimSuffix(manifest.Key, ".zip") + ".json")
	if err != nil {
		t.Fatalf("manifest sidecar missing: %v", err)
	}
	sidecar.Close()
}

func TestArchiveMissingArtifact(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	batch := newBatch(t, map[string]string{"game.dll": "dll"})
	batch.Artifacts = append(batch.Artifacts, symbols.Artifact{Path: filepath.Join(t.TempDir(), "gone.pdb")})

	if _, err := archive.New(store).Archive(context.Background(), batch); err == nil {
		t.Error("expected an error for a vanished artifact")
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	digest, size, err := archive.Digest(path)
	if err != nil {
		t.Fatal(err)
	}
	// BLAKE3 of the empty input.
	if digest != "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262" || size != 0 {
		t.Errorf("unexpected digest %s (%d bytes)", digest, size)
	}
}
