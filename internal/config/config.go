package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Reporting   Reporting   `json:"reporting" yaml:"reporting"`
	Service     Service     `json:"service" yaml:"service"`
	Project     Project     `json:"project" yaml:"project"`
	Upload      Upload      `json:"upload" yaml:"upload"`
	IOS         IOS         `json:"ios" yaml:"ios"`
	HTTP        HTTP        `json:"http" yaml:"http"`
	Redis       Redis       `json:"redis" yaml:"redis"`
	NATS        NATS        `json:"nats" yaml:"nats"`
	Metrics     Metrics     `json:"metrics" yaml:"metrics"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	LogLevel    LogLevel    `json:"log_level" yaml:"log_level"`
}

// Reporting identifies the crash database and controls what gets submitted to it.
type Reporting struct {
	Database               string   `json:"database" yaml:"database"`
	Application            string   `json:"application" yaml:"application"`
	Version                string   `json:"version" yaml:"version"`
	ClientID               string   `json:"client_id" yaml:"client_id"`
	ClientSecret           string   `json:"-" yaml:"client_secret"`
	CaptureEditorLog       bool     `json:"capture_editor_log" yaml:"capture_editor_log"`
	CapturePlayerLog       bool     `json:"capture_player_log" yaml:"capture_player_log"`
	CaptureScreenshots     bool     `json:"capture_screenshots" yaml:"capture_screenshots"`
	PostExceptionsInEditor bool     `json:"post_exceptions_in_editor" yaml:"post_exceptions_in_editor"`
	IgnoredExceptions      []string `json:"ignored_exceptions" yaml:"ignored_exceptions"`

	// Found is set when a configuration file was read or any reporting setting was
	// supplied through flags or the environment.
	Found bool `json:"-" yaml:"-"`
}

type Service struct {
	Domain   string `json:"domain" yaml:"domain"`
	TokenURL string `json:"token_url" yaml:"token_url"`
}

type Project struct {
	Directory    string `json:"directory" yaml:"directory"`
	ProductName  string `json:"product_name" yaml:"product_name"`
	BuildVersion string `json:"build_version" yaml:"build_version"`
}

type Upload struct {
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Retries int           `json:"retries" yaml:"retries"`
}

type IOS struct {
	ProjectName     string `json:"project_name" yaml:"project_name"`
	MainTarget      string `json:"main_target" yaml:"main_target"`
	FrameworkTarget string `json:"framework_target" yaml:"framework_target"`
	Bundle          string `json:"bundle" yaml:"bundle"`
	PhaseName       string `json:"phase_name" yaml:"phase_name"`
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type Redis struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Address      string        `json:"address" yaml:"address"`
	Username     string        `json:"username" yaml:"username"`
	Password     string        `json:"-" yaml:"password"`
	Database     int           `json:"database" yaml:"database"`
	RateLimitKey string        `json:"rate_limit_key" yaml:"rate_limit_key"`
	Sentinel     RedisSentinel `json:"sentinel" yaml:"sentinel"`
}

type RedisSentinel struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	MasterName string   `json:"master_name" yaml:"master_name"`
	Addresses  []string `json:"addresses" yaml:"addresses"`
	Password   string   `json:"-" yaml:"password"`
}

type NATS struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

type Metrics struct {
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `json:"job" yaml:"job"`
}

type Persistence struct {
	Database Database `json:"database" yaml:"database"`
	Archive  Archive  `json:"archive" yaml:"archive"`
}

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type Database struct {
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	Driver          DatabaseDriver `json:"driver" yaml:"driver"`
	Database        string         `json:"database" yaml:"database"`
	Username        string         `json:"username" yaml:"username"`
	Password        string         `json:"-" yaml:"password"`
	Host            string         `json:"host" yaml:"host"`
	Port            uint16         `json:"port" yaml:"port"`
	ExtraParameters string         `json:"extra_parameters" yaml:"extra_parameters"`
}

type ArchiveDriver string

const (
	ArchiveDriverFilesystem ArchiveDriver = "filesystem"
	ArchiveDriverS3         ArchiveDriver = "s3"
)

type Archive struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Driver    ArchiveDriver `json:"driver" yaml:"driver"`
	Directory string        `json:"directory" yaml:"directory"`
	S3        S3Options     `json:"s3" yaml:"s3"`
}

type S3Options struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

type HTTPListener struct {
	IPV4Host string `json:"ipv4_host" yaml:"ipv4_host"`
	IPV6Host string `json:"ipv6_host" yaml:"ipv6_host"`
	Port     uint16 `json:"port" yaml:"port"`
}

type Tracing struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

type PProf struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type HTTPMetrics struct {
	HTTPListener `yaml:",inline"`
	Enabled      bool `json:"enabled" yaml:"enabled"`
}

type HTTP struct {
	HTTPListener   `yaml:",inline"`
	Tracing        Tracing     `json:"tracing" yaml:"tracing"`
	PProf          PProf       `json:"pprof" yaml:"pprof"`
	TrustedProxies []string    `json:"trusted_proxies" yaml:"trusted_proxies"`
	Metrics        HTTPMetrics `json:"metrics" yaml:"metrics"`
	CORSHosts      []string    `json:"cors_hosts" yaml:"cors_hosts"`
}

//nolint:golint,gochecknoglobals
var (
	ConfigFileKey                         = "config"
	LogLevelKey                           = "log_level"
	ReportingDatabaseKey                  = "reporting.database"
	ReportingApplicationKey               = "reporting.application"
	ReportingVersionKey                   = "reporting.version"
	ReportingClientIDKey                  = "reporting.client_id"
	//nolint:golint,gosec
	ReportingClientSecretKey              = "reporting.client_secret"
	ReportingCaptureEditorLogKey          = "reporting.capture_editor_log"
	ReportingCapturePlayerLogKey          = "reporting.capture_player_log"
	ReportingCaptureScreenshotsKey        = "reporting.capture_screenshots"
	ReportingPostExceptionsInEditorKey    = "reporting.post_exceptions_in_editor"
	ReportingIgnoredExceptionsKey         = "reporting.ignored_exceptions"
	ServiceDomainKey                      = "service.domain"
	ServiceTokenURLKey                    = "service.token_url"
	ProjectDirectoryKey                   = "project.directory"
	ProjectProductNameKey                 = "project.product_name"
	ProjectBuildVersionKey                = "project.build_version"
	UploadTimeoutKey                      = "upload.timeout"
	UploadRetriesKey                      = "upload.retries"
	IOSProjectNameKey                     = "ios.project_name"
	IOSMainTargetKey                      = "ios.main_target"
	IOSFrameworkTargetKey                 = "ios.framework_target"
	IOSBundleKey                          = "ios.bundle"
	IOSPhaseNameKey                       = "ios.phase_name"
	HTTPIPV4HostKey                       = "http.ipv4_host"
	HTTPIPV6HostKey                       = "http.ipv6_host"
	HTTPPortKey                           = "http.port"
	HTTPTracingEnabledKey                 = "http.tracing.enabled"
	HTTPTracingOTLPEndKey                 = "http.tracing.otlp_endpoint"
	HTTPPProfEnabledKey                   = "http.pprof.enabled"
	HTTPTrustedProxiesKey                 = "http.trusted_proxies"
	HTTPMetricsEnabledKey                 = "http.metrics.enabled"
	HTTPMetricsIPV4HostKey                = "http.metrics.ipv4_host"
	HTTPMetricsIPV6HostKey                = "http.metrics.ipv6_host"
	HTTPMetricsPortKey                    = "http.metrics.port"
	HTTPCORSHostsKey                      = "http.cors_hosts"
	RedisEnabledKey                       = "redis.enabled"
	RedisAddressKey                       = "redis.address"
	RedisUsernameKey                      = "redis.username"
	RedisPasswordKey                      = "redis.password"
	RedisDatabaseKey                      = "redis.database"
	RedisRateLimitKeyKey                  = "redis.rate_limit_key"
	RedisSentinelEnabledKey               = "redis.sentinel.enabled"
	RedisSentinelMasterNameKey            = "redis.sentinel.master_name"
	RedisSentinelAddressesKey             = "redis.sentinel.addresses"
	RedisSentinelPasswordKey              = "redis.sentinel.password"
	NATSEnabledKey                        = "nats.enabled"
	NATSURLKey                            = "nats.url"
	NATSSubjectKey                        = "nats.subject"
	MetricsPushgatewayURLKey              = "metrics.pushgateway_url"
	MetricsJobKey                         = "metrics.job"
	PersistenceDatabaseEnabledKey         = "persistence.database.enabled"
	PersistenceDatabaseDriverKey          = "persistence.database.driver"
	PersistenceDatabaseDatabaseKey        = "persistence.database.database"
	PersistenceDatabaseUsernameKey        = "persistence.database.username"
	PersistenceDatabasePasswordKey        = "persistence.database.password"
	PersistenceDatabaseHostKey            = "persistence.database.host"
	PersistenceDatabasePortKey            = "persistence.database.port"
	PersistenceDatabaseExtraParametersKey = "persistence.database.extra_parameters"
	PersistenceArchiveEnabledKey          = "persistence.archive.enabled"
	PersistenceArchiveDriverKey           = "persistence.archive.driver"
	PersistenceArchiveDirectoryKey        = "persistence.archive.directory"
	PersistenceArchiveS3BucketKey         = "persistence.archive.s3.bucket"
	PersistenceArchiveS3RegionKey         = "persistence.archive.s3.region"
	PersistenceArchiveS3EndpointKey       = "persistence.archive.s3.endpoint"
	PersistenceArchiveS3PrefixKey         = "persistence.archive.s3.prefix"
	PersistenceArchiveS3UsePathStyleKey   = "persistence.archive.s3.use_path_style"
)

const (
	DefaultConfigPath                  = "crashgate.yaml"
	DefaultLogLevel                    = LogLevelInfo
	DefaultServiceDomain               = "bugsplat.com"
	DefaultServiceTokenURL             = "https://app.bugsplat.com/oauth2/authorize"
	DefaultProjectDirectory            = "."
	DefaultUploadTimeout               = 60 * time.Second
	DefaultUploadRetries               = 3
	DefaultIOSProjectName              = "Unity-iPhone.xcodeproj"
	DefaultIOSMainTarget               = "Unity-iPhone"
	DefaultIOSFrameworkTarget          = "UnityFramework"
	DefaultIOSBundle                   = "HockeySDKResources.bundle"
	DefaultIOSPhaseName                = "Upload dSYM files to BugSplat"
	DefaultHTTPIPV4Host                = "0.0.0.0"
	DefaultHTTPIPV6Host                = "::"
	DefaultHTTPPort                    = 8080
	DefaultHTTPMetricsIPV4Host         = "127.0.0.1"
	DefaultHTTPMetricsIPV6Host         = "::1"
	DefaultHTTPMetricsPort             = 8081
	DefaultRedisRateLimitKey           = "crashgate:ratelimit"
	DefaultNATSSubject                 = "crashgate.reports"
	DefaultMetricsJob                  = "crashgate"
	DefaultPersistenceDatabaseDriver   = DatabaseDriverSQLite
	DefaultPersistenceDatabaseDatabase = "crashgate.db"
	DefaultPersistenceArchiveDriver    = ArchiveDriverFilesystem
	DefaultPersistenceArchiveDirectory = "symbol-archive/"
)

// RegisterFlags registers every configuration key as a persistent flag so that all
// subcommands share them.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringP(ConfigFileKey, "c", DefaultConfigPath, "Config file path")
	flags.String(LogLevelKey, string(DefaultLogLevel), "Log level (debug, info, warn, error)")
	flags.String(ReportingDatabaseKey, "", "Crash database name")
	flags.String(ReportingApplicationKey, "", "Application name symbols are filed under")
	flags.String(ReportingVersionKey, "", "Application version symbols are filed under")
	flags.String(ReportingClientIDKey, "", "OAuth client ID for symbol upload")
	flags.String(ReportingClientSecretKey, "", "OAuth client secret for symbol upload")
	flags.Bool(ReportingCaptureEditorLogKey, false, "Attach the editor log to crash reports")
	flags.Bool(ReportingCapturePlayerLogKey, false, "Attach the player log to crash reports")
	flags.Bool(ReportingCaptureScreenshotsKey, false, "Attach a screenshot to crash reports")
	flags.Bool(ReportingPostExceptionsInEditorKey, false, "Submit exceptions raised inside the editor")
	flags.StringSlice(ReportingIgnoredExceptionsKey, []string{}, "Comma-separated list of exception types never submitted")
	flags.String(ServiceDomainKey, DefaultServiceDomain, "Reporting service domain")
	flags.String(ServiceTokenURLKey, DefaultServiceTokenURL, "OAuth token endpoint")
	flags.String(ProjectDirectoryKey, DefaultProjectDirectory, "Engine project directory")
	flags.String(ProjectProductNameKey, "", "Product name, read from the project settings when empty")
	flags.String(ProjectBuildVersionKey, "", "Build version, read from the project settings when empty")
	flags.Duration(UploadTimeoutKey, DefaultUploadTimeout, "Timeout for the whole symbol upload")
	flags.Int(UploadRetriesKey, DefaultUploadRetries, "Attempts per upload request")
	flags.String(IOSProjectNameKey, DefaultIOSProjectName, "Exported Xcode project name")
	flags.String(IOSMainTargetKey, DefaultIOSMainTarget, "Xcode application target")
	flags.String(IOSFrameworkTargetKey, DefaultIOSFrameworkTarget, "Xcode framework target")
	flags.String(IOSBundleKey, DefaultIOSBundle, "Resource bundle copied into the application")
	flags.String(IOSPhaseNameKey, DefaultIOSPhaseName, "Name of the injected dSYM upload build phase")
	flags.String(HTTPIPV4HostKey, DefaultHTTPIPV4Host, "HTTP server IPv4 host")
	flags.String(HTTPIPV6HostKey, DefaultHTTPIPV6Host, "HTTP server IPv6 host")
	flags.Uint16(HTTPPortKey, DefaultHTTPPort, "HTTP server port")
	flags.Bool(HTTPTracingEnabledKey, false, "Enable Open Telemetry tracing")
	flags.String(HTTPTracingOTLPEndKey, "", "Open Telemetry endpoint")
	flags.Bool(HTTPPProfEnabledKey, false, "Enable pprof")
	flags.StringSlice(HTTPTrustedProxiesKey, []string{}, "Comma-separated list of trusted proxies")
	flags.Bool(HTTPMetricsEnabledKey, false, "Enable metrics server")
	flags.String(HTTPMetricsIPV4HostKey, DefaultHTTPMetricsIPV4Host, "Metrics server IPv4 host")
	flags.String(HTTPMetricsIPV6HostKey, DefaultHTTPMetricsIPV6Host, "Metrics server IPv6 host")
	flags.Uint16(HTTPMetricsPortKey, DefaultHTTPMetricsPort, "Metrics server port")
	flags.StringSlice(HTTPCORSHostsKey, []string{}, "Comma-separated list of CORS hosts")
	flags.Bool(RedisEnabledKey, false, "Share the submission rate limit through Redis")
	flags.String(RedisAddressKey, "", "Redis address")
	flags.String(RedisUsernameKey, "", "Redis username")
	flags.String(RedisPasswordKey, "", "Redis password")
	flags.Int(RedisDatabaseKey, 0, "Redis database")
	flags.String(RedisRateLimitKeyKey, DefaultRedisRateLimitKey, "Redis key holding the rate limit window")
	flags.Bool(RedisSentinelEnabledKey, false, "Connect to Redis through Sentinel")
	flags.String(RedisSentinelMasterNameKey, "", "Redis Sentinel master name")
	flags.StringSlice(RedisSentinelAddressesKey, []string{}, "Comma-separated list of Redis Sentinel addresses")
	flags.String(RedisSentinelPasswordKey, "", "Redis Sentinel password")
	flags.Bool(NATSEnabledKey, false, "Publish accepted crash events to NATS")
	flags.String(NATSURLKey, "", "NATS server URL")
	flags.String(NATSSubjectKey, DefaultNATSSubject, "NATS subject for accepted crash events")
	flags.String(MetricsPushgatewayURLKey, "", "Prometheus Pushgateway URL for build metrics")
	flags.String(MetricsJobKey, DefaultMetricsJob, "Pushgateway job name")
	flags.Bool(PersistenceDatabaseEnabledKey, false, "Record upload history")
	flags.String(PersistenceDatabaseDriverKey, string(DefaultPersistenceDatabaseDriver), "Database driver")
	flags.String(PersistenceDatabaseDatabaseKey, DefaultPersistenceDatabaseDatabase, "Database name or path")
	flags.String(PersistenceDatabaseUsernameKey, "", "Database username")
	flags.String(PersistenceDatabasePasswordKey, "", "Database password")
	flags.String(PersistenceDatabaseHostKey, "", "Database host")
	flags.Uint16(PersistenceDatabasePortKey, 0, "Database port")
	flags.String(PersistenceDatabaseExtraParametersKey, "", "Database extra parameters")
	flags.Bool(PersistenceArchiveEnabledKey, false, "Archive every uploaded symbol batch")
	flags.String(PersistenceArchiveDriverKey, string(DefaultPersistenceArchiveDriver), "Archive storage driver (filesystem, s3)")
	flags.String(PersistenceArchiveDirectoryKey, DefaultPersistenceArchiveDirectory, "Archive directory")
	flags.String(PersistenceArchiveS3BucketKey, "", "Archive S3 bucket")
	flags.String(PersistenceArchiveS3RegionKey, "", "Archive S3 region")
	flags.String(PersistenceArchiveS3EndpointKey, "", "Archive S3 endpoint")
	flags.String(PersistenceArchiveS3PrefixKey, "", "Archive S3 key prefix")
	flags.Bool(PersistenceArchiveS3UsePathStyleKey, false, "Use path-style S3 addressing")
}

var (
	ErrOTLPEndpointRequired   = errors.New("OTLP endpoint is required when tracing is enabled")
	ErrDBHostRequired         = errors.New("Database host is required")
	ErrDBDatabaseRequired     = errors.New("Database name is required")
	ErrDatabaseDriverRequired = errors.New("Database driver is required")
	ErrUnknownDatabaseDriver  = errors.New("Unknown database driver")
	ErrUnknownArchiveDriver   = errors.New("Unknown archive driver")
	ErrS3BucketRequired       = errors.New("S3 bucket is required for the S3 archive")
	ErrRedisAddressRequired   = errors.New("Redis address is required when Redis is enabled")
	ErrNATSURLRequired        = errors.New("NATS URL is required when NATS is enabled")
	ErrInvalidLogLevel        = errors.New("Invalid log level")
	ErrInvalidUploadTimeout   = errors.New("Upload timeout must be positive")
	ErrDatabaseRequired       = errors.New("Reporting database is required")
)

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}
	if c.Upload.Timeout <= 0 {
		return ErrInvalidUploadTimeout
	}
	if c.HTTP.Tracing.Enabled && c.HTTP.Tracing.OTLPEndpoint == "" {
		return ErrOTLPEndpointRequired
	}
	if c.Redis.Enabled && !c.Redis.Sentinel.Enabled && c.Redis.Address == "" {
		return ErrRedisAddressRequired
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return ErrNATSURLRequired
	}
	if c.Persistence.Database.Enabled {
		switch c.Persistence.Database.Driver {
		case "":
			return ErrDatabaseDriverRequired
		case DatabaseDriverSQLite, DatabaseDriverMySQL, DatabaseDriverPostgres:
		default:
			return ErrUnknownDatabaseDriver
		}
		if c.Persistence.Database.Driver != DatabaseDriverSQLite && c.Persistence.Database.Host == "" {
			return ErrDBHostRequired
		}
		if c.Persistence.Database.Database == "" {
			return ErrDBDatabaseRequired
		}
	}
	if c.Persistence.Archive.Enabled {
		switch c.Persistence.Archive.Driver {
		case ArchiveDriverFilesystem:
		case ArchiveDriverS3:
			if c.Persistence.Archive.S3.Bucket == "" {
				return ErrS3BucketRequired
			}
		default:
			return ErrUnknownArchiveDriver
		}
	}

	return nil
}

// ValidateServe checks the settings the runtime service cannot work without.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Reporting.Database == "" {
		return ErrDatabaseRequired
	}
	return nil
}

func LoadConfig(cmd *cobra.Command) (*Config, error) {
	var config Config

	// Load flags from envs
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if ctx.Err() != nil {
			return
		}
		optName := strings.ReplaceAll(strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"), ".", "__")
		if val, ok := os.LookupEnv(optName); !f.Changed && ok {
			if err := f.Value.Set(val); err != nil {
				cancel(err)
			}
			f.Changed = true
		}
	})
	if ctx.Err() != nil {
		return &config, fmt.Errorf("failed to load env: %w", context.Cause(ctx))
	}

	configPath, err := cmd.Flags().GetString(ConfigFileKey)
	if err != nil {
		return &config, fmt.Errorf("failed to get config path: %w", err)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &config, fmt.Errorf("failed to read config: %w", err)
		} else if err == nil {
			if err := yaml.Unmarshal(data, &config); err != nil {
				return &config, fmt.Errorf("failed to unmarshal config: %w", err)
			}
			config.Reporting.Found = true
		}
	}

	err = overrideFlags(&config, cmd)
	if err != nil {
		return &config, fmt.Errorf("failed to override flags: %w", err)
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed && strings.HasPrefix(f.Name, "reporting.") {
			config.Reporting.Found = true
		}
	})

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
	config.LogLevel = LogLevel(strings.ToLower(string(config.LogLevel)))
	if config.Service.Domain == "" {
		config.Service.Domain = DefaultServiceDomain
	}
	if config.Service.TokenURL == "" {
		config.Service.TokenURL = DefaultServiceTokenURL
	}
	if config.Project.Directory == "" {
		config.Project.Directory = DefaultProjectDirectory
	}
	if config.Upload.Timeout == 0 {
		config.Upload.Timeout = DefaultUploadTimeout
	}
	if config.Upload.Retries <= 0 {
		config.Upload.Retries = DefaultUploadRetries
	}
	if config.IOS.ProjectName == "" {
		config.IOS.ProjectName = DefaultIOSProjectName
	}
	if config.IOS.MainTarget == "" {
		config.IOS.MainTarget = DefaultIOSMainTarget
	}
	if config.IOS.FrameworkTarget == "" {
		config.IOS.FrameworkTarget = DefaultIOSFrameworkTarget
	}
	if config.IOS.Bundle == "" {
		config.IOS.Bundle = DefaultIOSBundle
	}
	if config.IOS.PhaseName == "" {
		config.IOS.PhaseName = DefaultIOSPhaseName
	}
	if config.HTTP.IPV4Host == "" {
		config.HTTP.IPV4Host = DefaultHTTPIPV4Host
	}
	if config.HTTP.IPV6Host == "" {
		config.HTTP.IPV6Host = DefaultHTTPIPV6Host
	}
	if config.HTTP.Port == 0 {
		config.HTTP.Port = DefaultHTTPPort
	}
	if config.HTTP.Metrics.IPV4Host == "" {
		config.HTTP.Metrics.IPV4Host = DefaultHTTPMetricsIPV4Host
	}
	if config.HTTP.Metrics.IPV6Host == "" {
		config.HTTP.Metrics.IPV6Host = DefaultHTTPMetricsIPV6Host
	}
	if config.HTTP.Metrics.Port == 0 {
		config.HTTP.Metrics.Port = DefaultHTTPMetricsPort
	}
	if config.Redis.RateLimitKey == "" {
		config.Redis.RateLimitKey = DefaultRedisRateLimitKey
	}
	if config.NATS.Subject == "" {
		config.NATS.Subject = DefaultNATSSubject
	}
	if config.Metrics.Job == "" {
		config.Metrics.Job = DefaultMetricsJob
	}
	if config.Persistence.Database.Driver == "" {
		config.Persistence.Database.Driver = DefaultPersistenceDatabaseDriver
	}
	if config.Persistence.Database.Database == "" {
		config.Persistence.Database.Database = DefaultPersistenceDatabaseDatabase
	}
	if config.Persistence.Archive.Driver == "" {
		config.Persistence.Archive.Driver = DefaultPersistenceArchiveDriver
	}
	if config.Persistence.Archive.Directory == "" {
		config.Persistence.Archive.Directory = DefaultPersistenceArchiveDirectory
	}
}

//nolint:gocyclo
func overrideFlags(config *Config, cmd *cobra.Command) error {
	var err error
	flags := cmd.Flags()

	if flags.Changed(LogLevelKey) {
		level, err := flags.GetString(LogLevelKey)
		if err != nil {
			return fmt.Errorf("failed to get log level: %w", err)
		}
		config.LogLevel = LogLevel(level)
	}

	if flags.Changed(ReportingDatabaseKey) {
		config.Reporting.Database, err = flags.GetString(ReportingDatabaseKey)
		if err != nil {
			return fmt.Errorf("failed to get reporting database: %w", err)
		}
	}

	if flags.Changed(ReportingApplicationKey) {
		config.Reporting.Application, err = flags.GetString(ReportingApplicationKey)
		if err != nil {
			return fmt.Errorf("failed to get reporting application: %w", err)
		}
	}

	if flags.Changed(ReportingVersionKey) {
		config.Reporting.Version, err = flags.GetString(ReportingVersionKey)
		if err != nil {
			return fmt.Errorf("failed to get reporting version: %w", err)
		}
	}

	if flags.Changed(ReportingClientIDKey) {
		config.Reporting.ClientID, err = flags.GetString(ReportingClientIDKey)
		if err != nil {
			return fmt.Errorf("failed to get client ID: %w", err)
		}
	}

	if flags.Changed(ReportingClientSecretKey) {
		config.Reporting.ClientSecret, err = flags.GetString(ReportingClientSecretKey)
		if err != nil {
			return fmt.Errorf("failed to get client secret: %w", err)
		}
	}

	if flags.Changed(ReportingCaptureEditorLogKey) {
		config.Reporting.CaptureEditorLog, err = flags.GetBool(ReportingCaptureEditorLogKey)
		if err != nil {
			return fmt.Errorf("failed to get capture editor log: %w", err)
		}
	}

	if flags.Changed(ReportingCapturePlayerLogKey) {
		config.Reporting.CapturePlayerLog, err = flags.GetBool(ReportingCapturePlayerLogKey)
		if err != nil {
			return fmt.Errorf("failed to get capture player log: %w", err)
		}
	}

	if flags.Changed(ReportingCaptureScreenshotsKey) {
		config.Reporting.CaptureScreenshots, err = flags.GetBool(ReportingCaptureScreenshotsKey)
		if err != nil {
			return fmt.Errorf("failed to get capture screenshots: %w", err)
		}
	}

	if flags.Changed(ReportingPostExceptionsInEditorKey) {
		config.Reporting.PostExceptionsInEditor, err = flags.GetBool(ReportingPostExceptionsInEditorKey)
		if err != nil {
			return fmt.Errorf("failed to get post exceptions in editor: %w", err)
		}
	}

	if flags.Changed(ReportingIgnoredExceptionsKey) {
		config.Reporting.IgnoredExceptions, err = flags.GetStringSlice(ReportingIgnoredExceptionsKey)
		if err != nil {
			return fmt.Errorf("failed to get ignored exceptions: %w", err)
		}
	}

	if flags.Changed(ServiceDomainKey) {
		config.Service.Domain, err = flags.GetString(ServiceDomainKey)
		if err != nil {
			return fmt.Errorf("failed to get service domain: %w", err)
		}
	}

	if flags.Changed(ServiceTokenURLKey) {
		config.Service.TokenURL, err = flags.GetString(ServiceTokenURLKey)
		if err != nil {
			return fmt.Errorf("failed to get token URL: %w", err)
		}
	}

	if flags.Changed(ProjectDirectoryKey) {
		config.Project.Directory, err = flags.GetString(ProjectDirectoryKey)
		if err != nil {
			return fmt.Errorf("failed to get project directory: %w", err)
		}
	}

	if flags.Changed(ProjectProductNameKey) {
		config.Project.ProductName, err = flags.GetString(ProjectProductNameKey)
		if err != nil {
			return fmt.Errorf("failed to get product name: %w", err)
		}
	}

	if flags.Changed(ProjectBuildVersionKey) {
		config.Project.BuildVersion, err = flags.GetString(ProjectBuildVersionKey)
		if err != nil {
			return fmt.Errorf("failed to get build version: %w", err)
		}
	}

	if flags.Changed(UploadTimeoutKey) {
		config.Upload.Timeout, err = flags.GetDuration(UploadTimeoutKey)
		if err != nil {
			return fmt.Errorf("failed to get upload timeout: %w", err)
		}
	}

	if flags.Changed(UploadRetriesKey) {
		config.Upload.Retries, err = flags.GetInt(UploadRetriesKey)
		if err != nil {
			return fmt.Errorf("failed to get upload retries: %w", err)
		}
	}

	if flags.Changed(IOSProjectNameKey) {
		config.IOS.ProjectName, err = flags.GetString(IOSProjectNameKey)
		if err != nil {
			return fmt.Errorf("failed to get iOS project name: %w", err)
		}
	}

	if flags.Changed(IOSMainTargetKey) {
		config.IOS.MainTarget, err = flags.GetString(IOSMainTargetKey)
		if err != nil {
			return fmt.Errorf("failed to get iOS main target: %w", err)
		}
	}

	if flags.Changed(IOSFrameworkTargetKey) {
		config.IOS.FrameworkTarget, err = flags.GetString(IOSFrameworkTargetKey)
		if err != nil {
			return fmt.Errorf("failed to get iOS framework target: %w", err)
		}
	}

	if flags.Changed(IOSBundleKey) {
		config.IOS.Bundle, err = flags.GetString(IOSBundleKey)
		if err != nil {
			return fmt.Errorf("failed to get iOS bundle: %w", err)
		}
	}

	if flags.Changed(IOSPhaseNameKey) {
		config.IOS.PhaseName, err = flags.GetString(IOSPhaseNameKey)
		if err != nil {
			return fmt.Errorf("failed to get iOS phase name: %w", err)
		}
	}

	if flags.Changed(HTTPIPV4HostKey) {
		config.HTTP.IPV4Host, err = flags.GetString(HTTPIPV4HostKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP IPv4 host: %w", err)
		}
	}

	if flags.Changed(HTTPIPV6HostKey) {
		config.HTTP.IPV6Host, err = flags.GetString(HTTPIPV6HostKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP IPv6 host: %w", err)
		}
	}

	if flags.Changed(HTTPPortKey) {
		config.HTTP.Port, err = flags.GetUint16(HTTPPortKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP port: %w", err)
		}
	}

	if flags.Changed(HTTPPProfEnabledKey) {
		config.HTTP.PProf.Enabled, err = flags.GetBool(HTTPPProfEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get pprof enabled: %w", err)
		}
	}

	if flags.Changed(HTTPTrustedProxiesKey) {
		config.HTTP.TrustedProxies, err = flags.GetStringSlice(HTTPTrustedProxiesKey)
		if err != nil {
			return fmt.Errorf("failed to get trusted proxies: %w", err)
		}
	}

	if flags.Changed(HTTPMetricsEnabledKey) {
		config.HTTP.Metrics.Enabled, err = flags.GetBool(HTTPMetricsEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics enabled: %w", err)
		}
	}

	if flags.Changed(HTTPMetricsIPV4HostKey) {
		config.HTTP.Metrics.IPV4Host, err = flags.GetString(HTTPMetricsIPV4HostKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics IPv4 host: %w", err)
		}
	}

	if flags.Changed(HTTPMetricsIPV6HostKey) {
		config.HTTP.Metrics.IPV6Host, err = flags.GetString(HTTPMetricsIPV6HostKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics IPv6 host: %w", err)
		}
	}

	if flags.Changed(HTTPMetricsPortKey) {
		config.HTTP.Metrics.Port, err = flags.GetUint16(HTTPMetricsPortKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics port: %w", err)
		}
	}

	if flags.Changed(HTTPTracingEnabledKey) {
		config.HTTP.Tracing.Enabled, err = flags.GetBool(HTTPTracingEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get tracing enabled: %w", err)
		}
	}

	if flags.Changed(HTTPTracingOTLPEndKey) {
		config.HTTP.Tracing.OTLPEndpoint, err = flags.GetString(HTTPTracingOTLPEndKey)
		if err != nil {
			return fmt.Errorf("failed to get tracing OTLP endpoint: %w", err)
		}
	}

	if flags.Changed(HTTPCORSHostsKey) {
		config.HTTP.CORSHosts, err = flags.GetStringSlice(HTTPCORSHostsKey)
		if err != nil {
			return fmt.Errorf("failed to get CORS hosts: %w", err)
		}
	}

	if flags.Changed(RedisEnabledKey) {
		config.Redis.Enabled, err = flags.GetBool(RedisEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get redis enabled: %w", err)
		}
	}

	if flags.Changed(RedisAddressKey) {
		config.Redis.Address, err = flags.GetString(RedisAddressKey)
		if err != nil {
			return fmt.Errorf("failed to get redis address: %w", err)
		}
	}

	if flags.Changed(RedisUsernameKey) {
		config.Redis.Username, err = flags.GetString(RedisUsernameKey)
		if err != nil {
			return fmt.Errorf("failed to get redis username: %w", err)
		}
	}

	if flags.Changed(RedisPasswordKey) {
		config.Redis.Password, err = flags.GetString(RedisPasswordKey)
		if err != nil {
			return fmt.Errorf("failed to get redis password: %w", err)
		}
	}

	if flags.Changed(RedisDatabaseKey) {
		config.Redis.Database, err = flags.GetInt(RedisDatabaseKey)
		if err != nil {
			return fmt.Errorf("failed to get redis database: %w", err)
		}
	}

	if flags.Changed(RedisRateLimitKeyKey) {
		config.Redis.RateLimitKey, err = flags.GetString(RedisRateLimitKeyKey)
		if err != nil {
			return fmt.Errorf("failed to get redis rate limit key: %w", err)
		}
	}

	if flags.Changed(RedisSentinelEnabledKey) {
		config.Redis.Sentinel.Enabled, err = flags.GetBool(RedisSentinelEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get redis sentinel enabled: %w", err)
		}
	}

	if flags.Changed(RedisSentinelMasterNameKey) {
		config.Redis.Sentinel.MasterName, err = flags.GetString(RedisSentinelMasterNameKey)
		if err != nil {
			return fmt.Errorf("failed to get redis sentinel master name: %w", err)
		}
	}

	if flags.Changed(RedisSentinelAddressesKey) {
		config.Redis.Sentinel.Addresses, err = flags.GetStringSlice(RedisSentinelAddressesKey)
		if err != nil {
			return fmt.Errorf("failed to get redis sentinel addresses: %w", err)
		}
	}

	if flags.Changed(RedisSentinelPasswordKey) {
		config.Redis.Sentinel.Password, err = flags.GetString(RedisSentinelPasswordKey)
		if err != nil {
			return fmt.Errorf("failed to get redis sentinel password: %w", err)
		}
	}

	if flags.Changed(NATSEnabledKey) {
		config.NATS.Enabled, err = flags.GetBool(NATSEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS enabled: %w", err)
		}
	}

	if flags.Changed(NATSURLKey) {
		config.NATS.URL, err = flags.GetString(NATSURLKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS URL: %w", err)
		}
	}

	if flags.Changed(NATSSubjectKey) {
		config.NATS.Subject, err = flags.GetString(NATSSubjectKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS subject: %w", err)
		}
	}

	if flags.Changed(MetricsPushgatewayURLKey) {
		config.Metrics.PushgatewayURL, err = flags.GetString(MetricsPushgatewayURLKey)
		if err != nil {
			return fmt.Errorf("failed to get pushgateway URL: %w", err)
		}
	}

	if flags.Changed(MetricsJobKey) {
		config.Metrics.Job, err = flags.GetString(MetricsJobKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics job: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabaseEnabledKey) {
		config.Persistence.Database.Enabled, err = flags.GetBool(PersistenceDatabaseEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get database enabled: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabaseDriverKey) {
		drvr, err := flags.GetString(PersistenceDatabaseDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get database driver: %w", err)
		}
		config.Persistence.Database.Driver = DatabaseDriver(strings.ToLower(drvr))
	}

	if flags.Changed(PersistenceDatabaseDatabaseKey) {
		config.Persistence.Database.Database, err = flags.GetString(PersistenceDatabaseDatabaseKey)
		if err != nil {
			return fmt.Errorf("failed to get database name: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabaseUsernameKey) {
		config.Persistence.Database.Username, err = flags.GetString(PersistenceDatabaseUsernameKey)
		if err != nil {
			return fmt.Errorf("failed to get database username: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabasePasswordKey) {
		config.Persistence.Database.Password, err = flags.GetString(PersistenceDatabasePasswordKey)
		if err != nil {
			return fmt.Errorf("failed to get database password: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabaseHostKey) {
		config.Persistence.Database.Host, err = flags.GetString(PersistenceDatabaseHostKey)
		if err != nil {
			return fmt.Errorf("failed to get database host: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabasePortKey) {
		config.Persistence.Database.Port, err = flags.GetUint16(PersistenceDatabasePortKey)
		if err != nil {
			return fmt.Errorf("failed to get database port: %w", err)
		}
	}

	if flags.Changed(PersistenceDatabaseExtraParametersKey) {
		config.Persistence.Database.ExtraParameters, err = flags.GetString(PersistenceDatabaseExtraParametersKey)
		if err != nil {
			return fmt.Errorf("failed to get database extra parameters: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveEnabledKey) {
		config.Persistence.Archive.Enabled, err = flags.GetBool(PersistenceArchiveEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get archive enabled: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveDriverKey) {
		drvr, err := flags.GetString(PersistenceArchiveDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get archive driver: %w", err)
		}
		config.Persistence.Archive.Driver = ArchiveDriver(strings.ToLower(drvr))
	}

	if flags.Changed(PersistenceArchiveDirectoryKey) {
		config.Persistence.Archive.Directory, err = flags.GetString(PersistenceArchiveDirectoryKey)
		if err != nil {
			return fmt.Errorf("failed to get archive directory: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveS3BucketKey) {
		config.Persistence.Archive.S3.Bucket, err = flags.GetString(PersistenceArchiveS3BucketKey)
		if err != nil {
			return fmt.Errorf("failed to get archive S3 bucket: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveS3RegionKey) {
		config.Persistence.Archive.S3.Region, err = flags.GetString(PersistenceArchiveS3RegionKey)
		if err != nil {
			return fmt.Errorf("failed to get archive S3 region: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveS3EndpointKey) {
		config.Persistence.Archive.S3.Endpoint, err = flags.GetString(PersistenceArchiveS3EndpointKey)
		if err != nil {
			return fmt.Errorf("failed to get archive S3 endpoint: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveS3PrefixKey) {
		config.Persistence.Archive.S3.Prefix, err = flags.GetString(PersistenceArchiveS3PrefixKey)
		if err != nil {
			return fmt.Errorf("failed to get archive S3 prefix: %w", err)
		}
	}

	if flags.Changed(PersistenceArchiveS3UsePathStyleKey) {
		config.Persistence.Archive.S3.UsePathStyle, err = flags.GetBool(PersistenceArchiveS3UsePathStyleKey)
		if err != nil {
			return fmt.Errorf("failed to get archive S3 path style: %w", err)
		}
	}

	return nil
}
