package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/archive"
	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/db/models"
	"github.com/USA-RedDragon/crashgate/internal/metrics"
	"github.com/USA-RedDragon/crashgate/internal/platform"
	"github.com/USA-RedDragon/crashgate/internal/symbols"
	"github.com/USA-RedDragon/crashgate/internal/unity"
	"github.com/USA-RedDragon/crashgate/internal/upload"
	"github.com/USA-RedDragon/crashgate/internal/xcode"
	"github.com/go-errors/errors"
	"github.com/mattn/go-nulltype"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

var (
	ErrNoResponse = errors.New("no response from the reporting service")
	ErrRejected   = errors.New("upload rejected")
)

// Outcome is how a postbuild run ended. None of them fail the build.
type Outcome int

const (
	Done Outcome = iota
	NoConfig
	UnsupportedTarget
	NoProjectDir
	NoPluginDir
	MissingDatabase
	MissingClientID
	MissingClientSecret
	NoArtifacts
	UploadFailed
	Panicked
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case NoConfig:
		return "no_config"
	case UnsupportedTarget:
		return "unsupported_target"
	case NoProjectDir:
		return "no_project_dir"
	case NoPluginDir:
		return "no_plugin_dir"
	case MissingDatabase:
		return "missing_database"
	case MissingClientID:
		return "missing_client_id"
	case MissingClientSecret:
		return "missing_client_secret"
	case NoArtifacts:
		return "no_artifacts"
	case UploadFailed:
		return "upload_failed"
	case Panicked:
		return "panicked"
	}
	return "unknown"
}

// Uploader is the part of *upload.Client the orchestrator needs.
type Uploader interface {
	Upload(ctx context.Context, batch upload.Batch) ([]upload.Response, error)
	Close() error
}

type Archiver interface {
	Archive(ctx context.Context, batch upload.Batch) (*archive.Manifest, error)
}

// Deps are the collaborators of an Orchestrator. Zero values select the real
// implementations, and a nil Archiver or DB turns that step off.
type Deps struct {
	NewUploader func(upload.Options) Uploader
	Patch       func(exportDir string, opts xcode.Options) error
	Archiver    Archiver
	DB          *gorm.DB
	Metrics     *metrics.Metrics
}

type Orchestrator struct {
	config *config.Config
	deps   Deps
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	if deps.NewUploader == nil {
		deps.NewUploader = func(opts upload.Options) Uploader {
			return upload.NewClient(opts)
		}
	}
	if deps.Patch == nil {
		deps.Patch = xcode.Patch
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &Orchestrator{config: cfg, deps: deps}
}

// Run is the postbuild hook. outputPath is where the engine wrote the build; for iOS
// it is the exported native project.
func (o *Orchestrator) Run(ctx context.Context, target platform.Target, outputPath string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Postbuild hook panicked", "panic", r, "stack", string(debug.Stack()))
			outcome = Panicked
		}
		o.deps.Metrics.ObservePipelineRun(outcome.String())
	}()
	return o.run(ctx, target, outputPath)
}

//nolint:gocyclo
func (o *Orchestrator) run(ctx context.Context, target platform.Target, outputPath string) Outcome {
	cfg := o.config
	if cfg == nil || !cfg.Reporting.Found {
		slog.Warn("No reporting configuration found, skipping symbol upload")
		return NoConfig
	}

	if target.NeedsNativeProject() {
		o.transform(outputPath)
	}

	arch, ok := target.PluginArch()
	if !ok {
		slog.Info("Symbol upload is not supported for this target", "target", target)
		return UnsupportedTarget
	}

	projectDir := cfg.Project.Directory
	if !isDir(projectDir) {
		slog.Warn("Project directory does not exist", "directory", projectDir)
		return NoProjectDir
	}
	pluginsDir := unity.PluginsDir(projectDir, arch)
	if !isDir(pluginsDir) {
		slog.Warn("Plugins directory does not exist", "directory", pluginsDir)
		return NoPluginDir
	}

	switch {
	case cfg.Reporting.Database == "":
		slog.Warn("Reporting database is not set, skipping symbol upload")
		return MissingDatabase
	case cfg.Reporting.ClientID == "":
		slog.Warn("Client ID is not set, skipping symbol upload")
		return MissingClientID
	case cfg.Reporting.ClientSecret == "":
		slog.Warn("Client secret is not set, skipping symbol upload")
		return MissingClientSecret
	}

	artifacts, err := symbols.Discover(pluginsDir, target.SymbolExtensions())
	if err != nil {
		slog.Error("Failed to discover symbol files", "directory", pluginsDir, "error", err)
		return NoArtifacts
	}
	if len(artifacts) == 0 {
		slog.Warn("No symbol files found", "directory", pluginsDir, "extensions", target.SymbolExtensions())
		return NoArtifacts
	}

	application, version := cfg.Reporting.Application, cfg.Reporting.Version
	if application == "" {
		application = cfg.Project.ProductName
	}
	if version == "" {
		version = cfg.Project.BuildVersion
	}
	application, version = unity.Identity(projectDir, application, version)

	batch := upload.Batch{
		Database:    cfg.Reporting.Database,
		Application: application,
		Version:     version,
		Artifacts:   artifacts,
	}
	slog.Info("Uploading symbol files", "database", batch.Database, "application", application, "version", version, "files", len(artifacts))

	start := time.Now()
	responses, uploadErr := o.upload(ctx, batch)
	success := uploadErr == nil
	duration := time.Since(start)
	o.deps.Metrics.ObserveUpload(success, len(artifacts), totalSize(artifacts), duration)

	o.record(ctx, target, batch, responses, uploadErr, duration)

	if !success {
		return UploadFailed
	}
	slog.Info("Symbol upload finished", "files", len(artifacts), "duration", duration)
	return Done
}

func (o *Orchestrator) transform(exportDir string) {
	cfg := o.config
	opts := xcode.DefaultOptions(xcode.ServerURL(cfg.Reporting.Database, cfg.Service.Domain))
	opts.ProjectName = cfg.IOS.ProjectName
	opts.MainTarget = cfg.IOS.MainTarget
	opts.FrameworkTarget = cfg.IOS.FrameworkTarget
	opts.BundleName = cfg.IOS.Bundle
	opts.PhaseName = cfg.IOS.PhaseName
	if err := o.deps.Patch(exportDir, opts); err != nil {
		slog.Error("Failed to prepare the native project", "directory", exportDir, "error", err)
	}
}

// upload acquires a client for the duration of one batch. Only the first response
// decides the result.
func (o *Orchestrator) upload(ctx context.Context, batch upload.Batch) ([]upload.Response, error) {
	cfg := o.config
	client := o.deps.NewUploader(upload.Options{
		BaseURL:      xcode.ServerURL(cfg.Reporting.Database, cfg.Service.Domain),
		TokenURL:     cfg.Service.TokenURL,
		ClientID:     cfg.Reporting.ClientID,
		ClientSecret: cfg.Reporting.ClientSecret,
		Timeout:      cfg.Upload.Timeout,
		Retries:      cfg.Upload.Retries,
	})
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close upload client", "error", err)
		}
	}()

	responses, err := client.Upload(ctx, batch)
	if err != nil {
		slog.Error("Symbol upload failed", "error", err)
		return responses, err
	}
	if len(responses) == 0 {
		return responses, ErrNoResponse
	}
	if !responses[0].Success() {
		slog.Error("Symbol upload was rejected", "status", responses[0].Status, "body", responses[0].Body)
		return responses, fmt.Errorf("%w: %s", ErrRejected, responses[0].Status)
	}
	return responses, nil
}

// record archives and logs the batch. Both are best effort.
func (o *Orchestrator) record(ctx context.Context, target platform.Target, batch upload.Batch, responses []upload.Response, uploadErr error, duration time.Duration) {
	success := uploadErr == nil
	var manifest *archive.Manifest
	if o.deps.Archiver != nil && success {
		var err error
		manifest, err = o.deps.Archiver.Archive(ctx, batch)
		if err != nil {
			slog.Error("Failed to archive symbol files", "error", err)
		}
	}

	if o.deps.DB == nil {
		return
	}
	record := models.UploadRecord{
		Database:    batch.Database,
		Application: batch.Application,
		Version:     batch.Version,
		Target:      target.String(),
		Status:      models.UploadStatusSucceeded,
		Duration:    duration,
	}
	if !success {
		record.Status = models.UploadStatusFailed
	}
	if uploadErr != nil {
		record.Error = nulltype.NullStringOf(uploadErr.Error())
	}
	digests := map[string]string{}
	if manifest != nil {
		record.ArchiveKey = nulltype.NullStringOf(manifest.Key)
		for _, file := range manifest.Files {
			digests[file.Source] = file.BLAKE3
		}
	}
	for i, artifact := range batch.Artifacts {
		uploaded := models.UploadedArtifact{
			Name: artifact.Name(),
			Size: artifact.Size,
		}
		if i < len(responses) {
			uploaded.StatusCode = responses[i].StatusCode
		}
		if digest, ok := digests[artifact.Path]; ok {
			uploaded.BLAKE3 = nulltype.NullStringOf(digest)
		}
		record.Artifacts = append(record.Artifacts, uploaded)
	}
	if err := models.CreateUploadRecord(o.deps.DB.WithContext(ctx), &record); err != nil {
		slog.Error("Failed to record upload", "error", err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Failed to stat directory", "path", path, "error", err)
		}
		return false
	}
	return info.IsDir()
}

func totalSize(artifacts []symbols.Artifact) int64 {
	var total int64
	for _, artifact := range artifacts {
		total += artifact.Size
	}
	return total
}
