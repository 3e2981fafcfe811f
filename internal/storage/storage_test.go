package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func filesystemStorage(t *testing.T) (storage.Storage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "archive")
	cfg := &config.Config{}
	cfg.Persistence.Archive.Driver = config.ArchiveDriverFilesystem
	cfg.Persistence.Archive.Directory = dir
	store, err := storage.NewStorage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func TestFilesRoundTrip(t *testing.T) {
	t.Parallel()
	store, dir := filesystemStorage(t)

	if err := store.MkdirAll("fred/Game/1.0", 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Creating an existing tree again is fine.
	if err := store.MkdirAll("fred/Game", 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	file, err := store.Create("fred/Game/1.0/batch.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := file.Write([]byte("archive")); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "fred", "Game", "1.0", "batch.zip"))
	if err != nil || string(data) != "archive" {
		t.Fatalf("file not written to disk: %q, %v", data, err)
	}

	sub, err := store.Sub("fred/Game")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Close()
	file, err = sub.Open("1.0/batch.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ = io.ReadAll(file)
	file.Close()
	if string(data) != "archive" {
		t.Errorf("unexpected content %q", data)
	}

	if err := store.Remove("fred/Game/1.0/batch.zip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Open("fred/Game/1.0/batch.zip"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist after remove, got %v", err)
	}
	if err := store.Remove("fred/Game/1.0"); err != nil {
		t.Errorf("removing an empty directory: %v", err)
	}
}

func TestFilesStayInRoot(t *testing.T) {
	t.Parallel()
	store, dir := filesystemStorage(t)
	outside := filepath.Join(filepath.Dir(dir), "outside.txt")

	file, err := store.Create("../outside.txt")
	if err == nil {
		file.Close()
	}
	if _, statErr := os.Stat(outside); statErr == nil {
		t.Error("a relative name escaped the archive root")
	}
}

func TestUnknownDriver(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Persistence.Archive.Driver = "ftp"
	if _, err := storage.NewStorage(context.Background(), cfg); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	t.Parallel()
	client := &fakeS3{objects: map[string][]byte{}}
	store := storage.NewS3("symbols", "archive", client)

	if err := store.MkdirAll("fred/Game", 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	file, err := store.Create("fred/Game/batch.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := file.Write([]byte("arch")); err != nil {
		t.Fatal(err)
	}
	if _, err := file.Write([]byte("ive")); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(client.objects["symbols/archive/fred/Game/batch.zip"]); got != "archive" {
		t.Fatalf("unexpected object content %q, objects: %v", got, client.objects)
	}

	sub, _ := store.Sub("fred")
	file, err = sub.Open("Game/batch.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(file)
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	if string(data) != "archive" {
		t.Errorf("unexpected content %q", data)
	}
	if len(client.objects) != 1 {
		t.Error("reading an object must not write it back")
	}

	if err := store.Remove("fred/Game/batch.zip"); err != nil {
		t.Fatal(err)
	}
	if len(client.objects) != 0 {
		t.Error("object not removed")
	}
}

func TestS3CreateWithoutWrite(t *testing.T) {
	t.Parallel()
	client := &fakeS3{objects: map[string][]byte{}}
	file, err := storage.NewS3("symbols", "", client).Create("empty")
	if err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Errorf("closing an unwritten file: %v", err)
	}
	if len(client.objects) != 0 {
		t.Error("an unwritten file should not be uploaded")
	}
}
