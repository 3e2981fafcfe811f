package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/USA-RedDragon/crashgate/cmd"
	"github.com/USA-RedDragon/crashgate/internal/config"
)

func loadWithFlags(t *testing.T, args ...string) *config.Config {
	t.Helper()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	// Keep a stray crashgate.yaml in the working directory out of the picture.
	args = append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return testConfig
}

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", "../../config.example.yaml"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.ValidateServe(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !testConfig.Reporting.Found {
		t.Error("reading a config file should mark the reporting configuration as found")
	}
	if testConfig.Reporting.Database != "fred" {
		t.Errorf("unexpected database: %s", testConfig.Reporting.Database)
	}
	if testConfig.Upload.Timeout != 60*time.Second {
		t.Errorf("unexpected upload timeout: %s", testConfig.Upload.Timeout)
	}
	if len(testConfig.Reporting.IgnoredExceptions) != 1 {
		t.Errorf("unexpected ignored exceptions: %v", testConfig.Reporting.IgnoredExceptions)
	}
	if testConfig.HTTP.Port != 8080 || testConfig.HTTP.Metrics.Port != 8081 {
		t.Errorf("unexpected ports: %d, %d", testConfig.HTTP.Port, testConfig.HTTP.Metrics.Port)
	}
	if !testConfig.Persistence.Archive.Enabled || testConfig.Persistence.Archive.Driver != config.ArchiveDriverFilesystem {
		t.Errorf("unexpected archive settings: %+v", testConfig.Persistence.Archive)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	testConfig := loadWithFlags(t)

	if testConfig.Reporting.Found {
		t.Error("no file and no reporting flags should leave the configuration not found")
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.ValidateServe(); !errors.Is(err, config.ErrDatabaseRequired) {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.Service.Domain != config.DefaultServiceDomain {
		t.Errorf("unexpected service domain: %s", testConfig.Service.Domain)
	}
	if testConfig.Service.TokenURL != config.DefaultServiceTokenURL {
		t.Errorf("unexpected token URL: %s", testConfig.Service.TokenURL)
	}
	if testConfig.Upload.Timeout != config.DefaultUploadTimeout {
		t.Errorf("unexpected upload timeout: %s", testConfig.Upload.Timeout)
	}
	if testConfig.Upload.Retries != config.DefaultUploadRetries {
		t.Errorf("unexpected upload retries: %d", testConfig.Upload.Retries)
	}
	if testConfig.IOS.MainTarget != "Unity-iPhone" || testConfig.IOS.FrameworkTarget != "UnityFramework" {
		t.Errorf("unexpected iOS targets: %+v", testConfig.IOS)
	}
	if testConfig.LogLevel != config.LogLevelInfo {
		t.Errorf("unexpected log level: %s", testConfig.LogLevel)
	}
}

func TestReportingFlagMarksFound(t *testing.T) {
	t.Parallel()
	testConfig := loadWithFlags(t, "--reporting.database", "fred")
	if !testConfig.Reporting.Found {
		t.Error("a reporting flag should mark the configuration as found")
	}
	testConfig = loadWithFlags(t, "--http.port", "9000")
	if testConfig.Reporting.Found {
		t.Error("non-reporting flags should not mark the configuration as found")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "crashgate.yaml")
	data := []byte("reporting:\n  database: fromfile\n  client_id: fileid\nupload:\n  retries: 5\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	if err := cmd.ParseFlags([]string{"--config", path, "--reporting.database", "fromflag"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if testConfig.Reporting.Database != "fromflag" {
		t.Errorf("unexpected database: %s", testConfig.Reporting.Database)
	}
	if testConfig.Reporting.ClientID != "fileid" {
		t.Errorf("unexpected client ID: %s", testConfig.Reporting.ClientID)
	}
	if testConfig.Upload.Retries != 5 {
		t.Errorf("unexpected retries: %d", testConfig.Upload.Retries)
	}
}

func TestInvalidConfigFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "crashgate.yaml")
	if err := os.WriteFile(path, []byte("reporting: [not, a, map"), 0600); err != nil {
		t.Fatal(err)
	}
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := config.LoadConfig(cmd); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"tracing without endpoint", []string{"--http.tracing.enabled"}, config.ErrOTLPEndpointRequired},
		{"tracing with endpoint", []string{"--http.tracing.enabled", "--http.tracing.otlp_endpoint", "dummy"}, nil},
		{"unknown database driver", []string{"--persistence.database.enabled", "--persistence.database.driver", "oracle"}, config.ErrUnknownDatabaseDriver},
		{"postgres without host", []string{"--persistence.database.enabled", "--persistence.database.driver", "postgres"}, config.ErrDBHostRequired},
		{"database disabled ignores driver", []string{"--persistence.database.driver", "oracle"}, nil},
		{"s3 archive without bucket", []string{"--persistence.archive.enabled", "--persistence.archive.driver", "s3"}, config.ErrS3BucketRequired},
		{"unknown archive driver", []string{"--persistence.archive.enabled", "--persistence.archive.driver", "ftp"}, config.ErrUnknownArchiveDriver},
		{"redis without address", []string{"--redis.enabled"}, config.ErrRedisAddressRequired},
		{"redis sentinel", []string{"--redis.enabled", "--redis.sentinel.enabled"}, nil},
		{"nats without url", []string{"--nats.enabled"}, config.ErrNATSURLRequired},
		{"bad log level", []string{"--log_level", "chatty"}, config.ErrInvalidLogLevel},
		{"negative timeout", []string{"--upload.timeout=-1s"}, config.ErrInvalidUploadTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := loadWithFlags(t, tt.args...).Validate()
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// Parallel tests are not allowed with t.Setenv
//
//nolint:golint,paralleltest
func TestEnvConfig(t *testing.T) {
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	t.Setenv("CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REPORTING__DATABASE", "fred")
	t.Setenv("REPORTING__APPLICATION", "Game")
	t.Setenv("REPORTING__VERSION", "2.0")
	t.Setenv("REPORTING__CLIENT_ID", "id")
	t.Setenv("REPORTING__CLIENT_SECRET", "secret")
	t.Setenv("REPORTING__POST_EXCEPTIONS_IN_EDITOR", "true")
	t.Setenv("REPORTING__IGNORED_EXCEPTIONS", "A,B")
	t.Setenv("SERVICE__DOMAIN", "example.com")
	t.Setenv("PROJECT__DIRECTORY", "/src/game")
	t.Setenv("UPLOAD__TIMEOUT", "2m")
	t.Setenv("UPLOAD__RETRIES", "7")
	t.Setenv("IOS__MAIN_TARGET", "App")
	t.Setenv("HTTP__PORT", "8087")
	t.Setenv("HTTP__METRICS__PORT", "8088")
	t.Setenv("HTTP__TRUSTED_PROXIES", "127.0.0.1,127.0.0.2")
	t.Setenv("REDIS__ENABLED", "true")
	t.Setenv("REDIS__ADDRESS", "localhost:6379")
	t.Setenv("REDIS__SENTINEL__ADDRESSES", "localhost:26379,localhost:26380")
	t.Setenv("NATS__ENABLED", "true")
	t.Setenv("NATS__URL", "nats://localhost:4222")
	t.Setenv("METRICS__PUSHGATEWAY_URL", "http://localhost:9091")
	t.Setenv("PERSISTENCE__DATABASE__ENABLED", "true")
	t.Setenv("PERSISTENCE__DATABASE__DRIVER", "POSTGRES")
	t.Setenv("PERSISTENCE__DATABASE__HOST", "host")
	t.Setenv("PERSISTENCE__DATABASE__PORT", "5432")
	t.Setenv("PERSISTENCE__ARCHIVE__ENABLED", "true")
	t.Setenv("PERSISTENCE__ARCHIVE__DRIVER", "s3")
	t.Setenv("PERSISTENCE__ARCHIVE__S3__BUCKET", "symbols")
	t.Setenv("PERSISTENCE__ARCHIVE__S3__USE_PATH_STYLE", "true")

	config, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := config.ValidateServe(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !config.Reporting.Found {
		t.Error("reporting env vars should mark the configuration as found")
	}
	if config.LogLevel != "debug" {
		t.Errorf("unexpected log level: %s", config.LogLevel)
	}
	if config.Reporting.Database != "fred" || config.Reporting.Application != "Game" || config.Reporting.Version != "2.0" {
		t.Errorf("unexpected reporting identity: %+v", config.Reporting)
	}
	if config.Reporting.ClientID != "id" || config.Reporting.ClientSecret != "secret" {
		t.Error("unexpected reporting credentials")
	}
	if !config.Reporting.PostExceptionsInEditor {
		t.Error("unexpected post exceptions in editor")
	}
	if len(config.Reporting.IgnoredExceptions) != 2 || config.Reporting.IgnoredExceptions[1] != "B" {
		t.Errorf("unexpected ignored exceptions: %v", config.Reporting.IgnoredExceptions)
	}
	if config.Service.Domain != "example.com" {
		t.Errorf("unexpected service domain: %s", config.Service.Domain)
	}
	if config.Project.Directory != "/src/game" {
		t.Errorf("unexpected project directory: %s", config.Project.Directory)
	}
	if config.Upload.Timeout != 2*time.Minute {
		t.Errorf("unexpected upload timeout: %s", config.Upload.Timeout)
	}
	if config.Upload.Retries != 7 {
		t.Errorf("unexpected upload retries: %d", config.Upload.Retries)
	}
	if config.IOS.MainTarget != "App" {
		t.Errorf("unexpected iOS main target: %s", config.IOS.MainTarget)
	}
	if config.HTTP.Port != 8087 {
		t.Errorf("unexpected HTTP port: %d", config.HTTP.Port)
	}
	if config.HTTP.Metrics.Port != 8088 {
		t.Errorf("unexpected HTTP metrics port: %d", config.HTTP.Metrics.Port)
	}
	if len(config.HTTP.TrustedProxies) != 2 {
		t.Errorf("unexpected HTTP trusted proxies: %v", config.HTTP.TrustedProxies)
	}
	if !config.Redis.Enabled || config.Redis.Address != "localhost:6379" {
		t.Errorf("unexpected Redis settings: %+v", config.Redis)
	}
	if len(config.Redis.Sentinel.Addresses) != 2 {
		t.Errorf("unexpected Redis sentinel hosts: %v", config.Redis.Sentinel.Addresses)
	}
	if !config.NATS.Enabled || config.NATS.URL != "nats://localhost:4222" {
		t.Errorf("unexpected NATS settings: %+v", config.NATS)
	}
	if config.Metrics.PushgatewayURL != "http://localhost:9091" {
		t.Errorf("unexpected pushgateway URL: %s", config.Metrics.PushgatewayURL)
	}
	if config.Persistence.Database.Driver != "postgres" {
		t.Errorf("driver should be lower-cased: %s", config.Persistence.Database.Driver)
	}
	if config.Persistence.Database.Port != 5432 {
		t.Errorf("unexpected persistence port: %d", config.Persistence.Database.Port)
	}
	if config.Persistence.Archive.S3.Bucket != "symbols" || !config.Persistence.Archive.S3.UsePathStyle {
		t.Errorf("unexpected archive S3 settings: %+v", config.Persistence.Archive.S3)
	}
}
