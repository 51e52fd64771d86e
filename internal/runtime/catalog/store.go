package catalog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/jsoncodec"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
	"github.com/stelliberty/enginectl/internal/runtime/telemetry"
)

// backupSuffix names the rolling backup next to the primary catalog.
const backupSuffix = ".bak"

// Store is the catalog with serialized writers. Every mutation is a
// read-modify-write under one mutex followed by an atomic save; write
// volumes are a handful per user action, so per-record locking would buy
// nothing.
type Store struct {
	paths PathResolver
	log   logging.ServiceLogger

	mu  sync.Mutex
	doc document
}

// Open loads the catalog at the resolver's primary path, recovering from
// the backup when the primary is corrupt and pruning entries whose
// content file vanished.
func Open(paths PathResolver, log logging.ServiceLogger) (*Store, error) {
	if paths == nil {
		return nil, runtimeerrors.ErrPathsRequired
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &Store{paths: paths, log: log}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	primary := s.paths.CatalogPath()
	healed := false

	doc, err := readDocument(primary)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		s.doc = document{Version: documentVersion, LogLevel: telemetry.LevelInfo}
		return nil
	default:
		s.log.Error("catalog primary unreadable, trying backup", err, logging.LogFields{"path": primary})
		doc, err = readDocument(primary + backupSuffix)
		if err != nil {
			// Both copies gone: start empty rather than brick the app,
			// but record the data loss loudly.
			s.log.Error("catalog backup unreadable, starting empty",
				fmt.Errorf("%w: %v", runtimeerrors.ErrStorageCorrupt, err),
				logging.LogFields{"path": primary + backupSuffix})
			s.doc = document{Version: documentVersion, LogLevel: telemetry.LevelInfo}
			return nil
		}
		// Self-heal: the recovered state becomes the new primary at once.
		healed = true
		s.log.Info("catalog recovered from backup", logging.LogFields{"path": primary})
	}

	s.doc = doc
	if s.prune() || healed {
		return s.persist()
	}
	return nil
}

// prune drops entries whose backing content file no longer exists.
// Reported, never fatal.
func (s *Store) prune() bool {
	changed := false

	kept := s.doc.Subscriptions[:0]
	for _, sub := range s.doc.Subscriptions {
		if _, err := os.Stat(s.paths.SubscriptionContentPath(sub.ID)); os.IsNotExist(err) {
			s.log.Info("pruning subscription with missing content", logging.LogFields{"id": sub.ID})
			changed = true
			continue
		}
		kept = append(kept, sub)
	}
	s.doc.Subscriptions = kept

	keptOv := s.doc.Overrides[:0]
	for _, ov := range s.doc.Overrides {
		if _, err := os.Stat(s.paths.OverrideContentPath(ov.ID)); os.IsNotExist(err) {
			s.log.Info("pruning override with missing content", logging.LogFields{"id": ov.ID})
			changed = true
			continue
		}
		keptOv = append(keptOv, ov)
	}
	s.doc.Overrides = keptOv

	return changed
}

func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := jsoncodec.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: %s: %v", runtimeerrors.ErrStorageCorrupt, path, err)
	}
	return doc, nil
}

// persist writes the catalog atomically: temp write, roll the previous
// primary into the backup, then rename the temp over the primary. A crash
// before the final rename leaves the old primary intact.
func (s *Store) persist() error {
	primary := s.paths.CatalogPath()
	data, err := jsoncodec.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := primary + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := copyFile(primary, primary+backupSuffix); err != nil && !os.IsNotExist(err) {
		s.log.Error("catalog backup rotation failed", err, nil)
	}
	return os.Rename(tmp, primary)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// --- subscriptions ---

// Subscriptions returns a snapshot of all entries in catalog order.
func (s *Store) Subscriptions() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscription, len(s.doc.Subscriptions))
	copy(out, s.doc.Subscriptions)
	return out
}

// Subscription looks up one entry by id.
func (s *Store) Subscription(id string) (Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.doc.Subscriptions {
		if sub.ID == id {
			return sub, true
		}
	}
	return Subscription{}, false
}

// SaveSubscription inserts or replaces an entry and writes its content
// file when content is non-empty. The content file lands before the
// catalog entry so a crash between the two leaves no dangling entry.
func (s *Store) SaveSubscription(sub Subscription, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content != "" {
		if err := writeFileAtomic(s.paths.SubscriptionContentPath(sub.ID), []byte(content)); err != nil {
			return err
		}
	}

	replaced := false
	for i := range s.doc.Subscriptions {
		if s.doc.Subscriptions[i].ID == sub.ID {
			s.doc.Subscriptions[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Subscriptions = append(s.doc.Subscriptions, sub)
	}
	return s.persist()
}

// DeleteSubscription removes an entry and its content file.
func (s *Store) DeleteSubscription(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.doc.Subscriptions[:0]
	for _, sub := range s.doc.Subscriptions {
		if sub.ID != id {
			kept = append(kept, sub)
		}
	}
	s.doc.Subscriptions = kept
	if s.doc.Active == id {
		s.doc.Active = ""
	}
	if err := os.Remove(s.paths.SubscriptionContentPath(id)); err != nil && !os.IsNotExist(err) {
		s.log.Error("subscription content removal failed", err, logging.LogFields{"id": id})
	}
	return s.persist()
}

// SubscriptionContent reads an entry's stored document.
func (s *Store) SubscriptionContent(id string) (string, error) {
	data, err := os.ReadFile(s.paths.SubscriptionContentPath(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- overrides ---

// Overrides returns a snapshot of all override entries.
func (s *Store) Overrides() []Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Override, len(s.doc.Overrides))
	copy(out, s.doc.Overrides)
	return out
}

// SaveOverride inserts or replaces an override and its content file.
func (s *Store) SaveOverride(ov Override, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ov.Format == "" {
		ov.Format = FormatDeclarative
	}
	if err := writeFileAtomic(s.paths.OverrideContentPath(ov.ID), []byte(content)); err != nil {
		return err
	}

	replaced := false
	for i := range s.doc.Overrides {
		if s.doc.Overrides[i].ID == ov.ID {
			s.doc.Overrides[i] = ov
			replaced = true
			break
		}
	}
	if !replaced {
		s.doc.Overrides = append(s.doc.Overrides, ov)
	}
	return s.persist()
}

// DeleteOverride removes an override. Subscriptions referencing it keep
// the dangling id; resolution skips it.
func (s *Store) DeleteOverride(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.doc.Overrides[:0]
	for _, ov := range s.doc.Overrides {
		if ov.ID != id {
			kept = append(kept, ov)
		}
	}
	s.doc.Overrides = kept
	if err := os.Remove(s.paths.OverrideContentPath(id)); err != nil && !os.IsNotExist(err) {
		s.log.Error("override content removal failed", err, logging.LogFields{"id": id})
	}
	return s.persist()
}

// ResolveOverride loads one override as a merge patch. Satisfies the
// composition pipeline's source contract; a deleted override errors here
// and the pipeline skips it.
func (s *Store) ResolveOverride(id string) (envelope.OverridePatch, error) {
	s.mu.Lock()
	var found *Override
	for i := range s.doc.Overrides {
		if s.doc.Overrides[i].ID == id {
			found = &s.doc.Overrides[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return envelope.OverridePatch{}, fmt.Errorf("override %s not in catalog", id)
	}
	data, err := os.ReadFile(s.paths.OverrideContentPath(id))
	if err != nil {
		return envelope.OverridePatch{}, err
	}
	return envelope.OverridePatch{Name: found.Name, Format: found.Format, Content: string(data)}, nil
}

// --- settings ---

// LogLevel reads the configured telemetry severity.
func (s *Store) LogLevel() telemetry.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.LogLevel.Valid() {
		return telemetry.LevelInfo
	}
	return s.doc.LogLevel
}

// SetLogLevel stores the telemetry severity.
func (s *Store) SetLogLevel(level telemetry.Level) error {
	if !level.Valid() {
		return fmt.Errorf("catalog: invalid level %q", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LogLevel = level
	return s.persist()
}

// ActiveSubscription reads the currently selected subscription id.
func (s *Store) ActiveSubscription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Active
}

// SetActiveSubscription records the selection.
func (s *Store) SetActiveSubscription(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Active = id
	return s.persist()
}

// TouchSubscription updates the entry's refresh metadata after a
// successful download.
func (s *Store) TouchSubscription(id string, usage *envelope.UsageInfo, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.doc.Subscriptions {
		if s.doc.Subscriptions[i].ID == id {
			s.doc.Subscriptions[i].LastUpdated = at
			if usage != nil {
				s.doc.Subscriptions[i].Usage = usage
			}
			return s.persist()
		}
	}
	return fmt.Errorf("subscription %s not in catalog", id)
}

// writeFileAtomic writes content files with the same temp-then-rename
// discipline as the catalog itself.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
