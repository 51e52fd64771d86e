package envelope

// Payload shapes for the command/event pairs that carry structure. The
// engine treats every payload as JSON; fields mirror what the engine's
// protocol actually sends, including the request_id used to tell apart
// concurrent operations of the same message type.

// ProcessResult reports the outcome of a start/stop command.
type ProcessResult struct {
	IsSuccessful bool   `json:"is_successful"`
	PID          int64  `json:"pid,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// VersionInfo answers a version query.
type VersionInfo struct {
	Version string `json:"version"`
	Premium bool   `json:"premium,omitempty"`
}

// StartEngine carries the fully merged runtime document to activate.
type StartEngine struct {
	Config string `json:"config"`
}

// StreamControl begins or ends a telemetry stream. Level only applies to
// feeds with server-side severity filtering.
type StreamControl struct {
	Feed  string `json:"feed"`
	Level string `json:"level,omitempty"`
}

// TrafficSample is one telemetry tick of transfer rates.
type TrafficSample struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// LogSample is one engine log line.
type LogSample struct {
	LogType string `json:"type"`
	Payload string `json:"payload"`
}

// DownloadRequest asks the engine to fetch a subscription document.
type DownloadRequest struct {
	RequestID      string `json:"request_id"`
	URL            string `json:"url"`
	ProxyMode      string `json:"proxy_mode"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int64  `json:"timeout_seconds"`
}

// UsageInfo is the subscription usage header parsed from a download.
type UsageInfo struct {
	Upload   uint64 `json:"upload,omitempty"`
	Download uint64 `json:"download,omitempty"`
	Total    uint64 `json:"total,omitempty"`
	Expire   int64  `json:"expire,omitempty"`
}

// DownloadResult answers a DownloadRequest with the same request id.
type DownloadResult struct {
	RequestID    string     `json:"request_id"`
	IsSuccessful bool       `json:"is_successful"`
	Content      string     `json:"content,omitempty"`
	Usage        *UsageInfo `json:"usage,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ParseRequest asks the engine to normalise raw subscription content into
// a standard configuration document.
type ParseRequest struct {
	RequestID string `json:"request_id"`
	Content   string `json:"content"`
}

// ParseResult answers a ParseRequest with the same request id.
type ParseResult struct {
	RequestID    string `json:"request_id"`
	IsSuccessful bool   `json:"is_successful"`
	Config       string `json:"config,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OverridePatch is one named override inside a batch, in application
// order.
type OverridePatch struct {
	Name    string `json:"name"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

// OverrideBatch asks the engine to apply the ordered patch list to the
// base document in a single merge so it sees one consistent ordering.
type OverrideBatch struct {
	Base      string          `json:"base"`
	Overrides []OverridePatch `json:"overrides"`
}

// OverrideBatchResult answers an OverrideBatch.
type OverrideBatchResult struct {
	IsSuccessful bool     `json:"is_successful"`
	Config       string   `json:"config,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Logs         []string `json:"logs,omitempty"`
}
