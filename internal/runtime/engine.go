package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/stelliberty/enginectl/internal/runtime/compose"
	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
)

type engineState struct {
	mu      sync.Mutex
	running bool
	pid     int64
}

func (e *engineState) set(running bool, pid int64) {
	e.mu.Lock()
	e.running = running
	e.pid = pid
	e.mu.Unlock()
}

func (e *engineState) get() (bool, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running, e.pid
}

// StartEngine activates the given runtime document. The document is
// derived and ephemeral; it is handed to the engine and discarded, never
// written back into any stored subscription.
func (s *Service) StartEngine(ctx context.Context, doc string) error {
	payload, err := s.client.Do(ctx, envelope.CmdStartEngine,
		envelope.StartEngine{Config: doc}, envelope.EvtProcessResult)
	if err != nil {
		return err
	}

	var result envelope.ProcessResult
	if err := (envelope.Envelope{Payload: payload}).Decode(&result); err != nil {
		return err
	}
	if !result.IsSuccessful {
		return fmt.Errorf("engine start rejected: %s", result.ErrorMessage)
	}

	s.engine.set(true, result.PID)
	s.Logger.Info("engine started", logging.LogFields{"pid": result.PID})
	return nil
}

// StopEngine shuts the engine process down. The running flag clears even
// when the stop exchange fails: an unreachable engine is not a running
// one from the supervisor's point of view.
func (s *Service) StopEngine(ctx context.Context) error {
	payload, err := s.client.Do(ctx, envelope.CmdStopEngine, nil, envelope.EvtProcessResult)
	s.engine.set(false, 0)
	if err != nil {
		return err
	}

	var result envelope.ProcessResult
	if err := (envelope.Envelope{Payload: payload}).Decode(&result); err != nil {
		return err
	}
	if !result.IsSuccessful {
		return fmt.Errorf("engine stop rejected: %s", result.ErrorMessage)
	}
	s.Logger.Info("engine stopped", nil)
	return nil
}

// EngineVersion queries the engine build.
func (s *Service) EngineVersion(ctx context.Context) (envelope.VersionInfo, error) {
	payload, err := s.client.Do(ctx, envelope.CmdQueryVersion, nil, envelope.EvtVersion)
	if err != nil {
		return envelope.VersionInfo{}, err
	}
	var info envelope.VersionInfo
	if err := (envelope.Envelope{Payload: payload}).Decode(&info); err != nil {
		return envelope.VersionInfo{}, err
	}
	return info, nil
}

// EngineRunning reports whether the engine accepted a start command and
// has not since been stopped. Callers deciding proxy routing mode consult
// this capability instead of reading ambient state.
func (s *Service) EngineRunning() bool {
	running, _ := s.engine.get()
	return running
}

// EnginePID returns the engine's process id, or zero while stopped.
func (s *Service) EnginePID() int64 {
	_, pid := s.engine.get()
	return pid
}

// ApplyConfiguration regenerates the runtime document for a stored
// subscription and starts (or reconfigures) the engine with it. The base
// document is validated before composition.
func (s *Service) ApplyConfiguration(ctx context.Context, subscriptionID string) error {
	sub, ok := s.store.Subscription(subscriptionID)
	if !ok {
		return fmt.Errorf("subscription %s not in catalog", subscriptionID)
	}
	base, err := s.store.SubscriptionContent(subscriptionID)
	if err != nil {
		return err
	}
	if err := compose.ValidateBase(base); err != nil {
		return err
	}

	doc, err := s.ApplyOverrides(ctx, base, sub)
	if err != nil {
		return err
	}
	return s.StartEngine(ctx, doc)
}
