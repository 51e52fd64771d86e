package enginectl

import (
	runtimepkg "github.com/stelliberty/enginectl/internal/runtime"
	catalogpkg "github.com/stelliberty/enginectl/internal/runtime/catalog"
	composepkg "github.com/stelliberty/enginectl/internal/runtime/compose"
	configpkg "github.com/stelliberty/enginectl/internal/runtime/config"
	envelopepkg "github.com/stelliberty/enginectl/internal/runtime/envelope"
	errspkg "github.com/stelliberty/enginectl/internal/runtime/errors"
	idspkg "github.com/stelliberty/enginectl/internal/runtime/ids"
	jsoncodec "github.com/stelliberty/enginectl/internal/runtime/jsoncodec"
	loggingpkg "github.com/stelliberty/enginectl/internal/runtime/logging"
	telemetrypkg "github.com/stelliberty/enginectl/internal/runtime/telemetry"
	transportpkg "github.com/stelliberty/enginectl/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	// Catalog entities.
	CatalogStore = catalogpkg.Store
	Subscription = catalogpkg.Subscription
	Override     = catalogpkg.Override
	PathResolver = catalogpkg.PathResolver

	// Composition.
	RuntimeParams  = composepkg.RuntimeParams
	GlobalOverride = composepkg.GlobalOverride

	// Telemetry.
	Level         = telemetrypkg.Level
	TrafficSample = envelopepkg.TrafficSample
	LogSample     = envelopepkg.LogSample
	VersionInfo   = envelopepkg.VersionInfo
	UsageInfo     = envelopepkg.UsageInfo

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types.
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	ConfigFromEnv  = configpkg.FromEnv
	ValidateConfig = configpkg.ValidateConfig

	OpenCatalog = catalogpkg.Open

	// Composition helpers.
	DefaultRuntimeParams = composepkg.DefaultRuntimeParams
	ValidateBase         = composepkg.ValidateBase
	MergeGlobal          = composepkg.MergeGlobal

	// Telemetry levels.
	ParseLevel = telemetrypkg.ParseLevel

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	// Failure taxonomy. Classify with errors.Is.
	ErrEngineUnavailable = errspkg.ErrEngineUnavailable
	ErrTimeout           = errspkg.ErrTimeout
	ErrCancelled         = errspkg.ErrCancelled
	ErrMergeFailed       = errspkg.ErrMergeFailed
	ErrValidationFailed  = errspkg.ErrValidationFailed
	ErrStorageCorrupt    = errspkg.ErrStorageCorrupt
	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrPathsRequired     = errspkg.ErrPathsRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger

	NewCorrelationID = idspkg.NewCorrelationID
	NewRequestID     = idspkg.NewRequestID

	// Modular transport registry. Import individual transports via:
	//   _ "github.com/stelliberty/enginectl/transport/channel"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities
)

// Telemetry severity levels, ordered; LevelSilent deactivates a stream.
const (
	LevelDebug   = telemetrypkg.LevelDebug
	LevelInfo    = telemetrypkg.LevelInfo
	LevelWarning = telemetrypkg.LevelWarning
	LevelError   = telemetrypkg.LevelError
	LevelSilent  = telemetrypkg.LevelSilent
)

// Override formats.
const (
	FormatDeclarative = catalogpkg.FormatDeclarative
	FormatScripted    = catalogpkg.FormatScripted
)

// Channel metadata keys shared with custom transports.
const (
	MetadataKeyType          = transportpkg.MetadataType
	MetadataKeyCorrelationID = transportpkg.MetadataCorrelationID
	MetadataKeyRequestID     = transportpkg.MetadataRequestID
)
