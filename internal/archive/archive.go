package archive

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/storage"
	"github.com/USA-RedDragon/crashgate/internal/upload"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

const manifestEntry = "manifest.json"

type Manifest struct {
	ID          string    `json:"id"`
	Database    string    `json:"database"`
	Application string    `json:"application"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	// Key is the storage name of the zip archive.
	Key   string `json:"key"`
	Files []File `json:"files"`
}

type File struct {
	// Name is the entry name inside the archive.
	Name   string `json:"name"`
	Source string `json:"source"`
	Size   int64  `json:"size"`
	BLAKE3 string `json:"blake3"`
}

type Archiver struct {
	store storage.Storage
}

func New(store storage.Storage) *Archiver {
	return &Archiver{store: store}
}

// Archive stores every artifact of the batch in one zip with a manifest entry, at
// {database}/{application}/{version}/{id}.zip. A copy of the manifest is written
// next to it.
func (a *Archiver) Archive(ctx context.Context, batch upload.Batch) (*Manifest, error) {
	manifest := &Manifest{
		ID:          uuid.NewString(),
		Database:    batch.Database,
		Application: batch.Application,
		Version:     batch.Version,
		CreatedAt:   time.Now().UTC(),
		Files:       make([]File, len(batch.Artifacts)),
	}

	names := entryNames(batch)
	errGrp, groupCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(runtime.GOMAXPROCS(0))
	for i, artifact := range batch.Artifacts {
		errGrp.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			digest, size, err := Digest(artifact.Path)
			if err != nil {
				return err
			}
			manifest.Files[i] = File{Name: names[i], Source: artifact.Path, Size: size, BLAKE3: digest}
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		return nil, fmt.Errorf("failed to hash artifacts: %w", err)
	}

	dir := path.Join(component(batch.Database), component(batch.Application), component(batch.Version))
	if err := a.store.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	manifest.Key = path.Join(dir, manifest.ID+".zip")

	if err := a.writeZip(ctx, manifest); err != nil {
		// Best effort: a half written archive is worse than none.
		if removeErr := a.store.Remove(manifest.Key); removeErr != nil {
			slog.Debug("Failed to remove partial archive", "key", manifest.Key, "error", removeErr)
		}
		return nil, err
	}
	if err := a.writeManifest(path.Join(dir, manifest.ID+".json"), manifest); err != nil {
		return nil, err
	}

	slog.Info("Archived symbol batch", "key", manifest.Key, "files", len(manifest.Files))
	return manifest, nil
}

func (a *Archiver) writeZip(ctx context.Context, manifest *Manifest) (err error) {
	file, err := a.store.Create(manifest.Key)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to store archive: %w", closeErr)
		}
	}()

	zw := zip.NewWriter(file)
	for _, entry := range manifest.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, entry, manifest.CreatedAt); err != nil {
			return err
		}
	}

	w, err := zw.Create(manifestEntry)
	if err != nil {
		return fmt.Errorf("failed to add manifest: %w", err)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, entry File, modified time.Time) error {
	src, err := os.Open(entry.Source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", entry.Source, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", entry.Name, err)
	}
	return nil
}

func (a *Archiver) writeManifest(name string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	file, err := a.store.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return file.Close()
}

// Digest returns the hex BLAKE3 digest and size of a file.
func Digest(name string) (string, int64, error) {
	file, err := os.Open(name)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// entryNames gives every artifact a unique flat name inside the archive.
func entryNames(batch upload.Batch) []string {
	names := make([]string, len(batch.Artifacts))
	seen := make(map[string]int, len(batch.Artifacts))
	for i, artifact := range batch.Artifacts {
		name := artifact.Name()
		seen[name]++
		if n := seen[name]; n > 1 {
			ext := filepath.Ext(name)
			name = strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(n) + ext
		}
		names[i] = name
	}
	return names
}

// component makes a value safe to use as a single path element.
func component(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
