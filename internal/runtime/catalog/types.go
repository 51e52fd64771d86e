// Package catalog persists subscriptions and overrides as a JSON catalog
// document plus per-entry content files. All writes go through atomic
// replace with one rolling backup, and loads self-heal from the backup
// when the primary is corrupt.
package catalog

import (
	"time"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	"github.com/stelliberty/enginectl/internal/runtime/telemetry"
)

// Override formats.
const (
	FormatDeclarative = "declarative"
	FormatScripted    = "scripted"
)

// PathResolver supplies storage locations. Directory layout is the
// embedding application's decision, not this package's.
type PathResolver interface {
	CatalogPath() string
	SubscriptionContentPath(id string) string
	OverrideContentPath(id string) string
}

// Subscription is one catalog entry. Content lives in its own file; the
// entry records metadata and the ordered override association list.
type Subscription struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	SourceURL        string              `json:"source_url,omitempty"`
	ProxyRoutingMode string              `json:"proxy_routing_mode,omitempty"`
	AutoUpdateHours  int                 `json:"auto_update_hours,omitempty"`
	LastUpdated      time.Time           `json:"last_updated,omitempty"`
	Usage            *envelope.UsageInfo `json:"usage,omitempty"`

	// OverrideIDs is a weak reference list in application order. A listed
	// override may have been deleted independently; resolution tolerates
	// the dangling id.
	OverrideIDs []string `json:"override_ids,omitempty"`
}

// Override is one named patch document. It carries no back-references;
// deleting it leaves dangling ids behind, which consumers skip.
type Override struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Format string `json:"format"`
}

// document is the persisted catalog shape.
type document struct {
	Version       int             `json:"version"`
	LogLevel      telemetry.Level `json:"log_level,omitempty"`
	Active        string          `json:"active_subscription,omitempty"`
	Subscriptions []Subscription  `json:"subscriptions"`
	Overrides     []Override      `json:"overrides"`
}

const documentVersion = 1
