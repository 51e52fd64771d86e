package transport

// Capabilities describes the features supported by a channel backend.
// Use this to introspect what operations are available at runtime.
type Capabilities struct {
	// InProcess indicates the transport loops back inside the process
	// instead of crossing an engine-process boundary.
	InProcess bool

	// SupportsStreaming indicates the backend can carry long-lived
	// telemetry feeds in addition to one-shot exchanges.
	SupportsStreaming bool

	// SupportsReconnect indicates the backend re-establishes the engine
	// connection on its own when the process comes back.
	SupportsReconnect bool

	// RequiresSecret indicates the backend authenticates with the engine
	// controller secret.
	RequiresSecret bool

	// MaxFrameSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxFrameSize int64

	// Name is the human-readable name of the transport.
	Name string

	// Version is the transport/driver version.
	Version string
}

// CapabilitiesProvider is implemented by transports that can report their
// capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// Predefined capability sets.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:              "channel",
		InProcess:         true,
		SupportsStreaming: true,
		SupportsReconnect: false,
		RequiresSecret:    false,
	}

	// ControllerCapabilities for the engine external-controller socket.
	ControllerCapabilities = Capabilities{
		Name:              "controller",
		InProcess:         false,
		SupportsStreaming: true,
		SupportsReconnect: true,
		RequiresSecret:    true,
	}
)

// GetCapabilities returns the capabilities for a transport by name using
// the default registry. Returns a zero Capabilities struct if the
// transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
