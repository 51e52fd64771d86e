package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/stelliberty/enginectl/internal/runtime/catalog"
	"github.com/stelliberty/enginectl/internal/runtime/compose"
	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	"github.com/stelliberty/enginectl/internal/runtime/exchange"
	"github.com/stelliberty/enginectl/internal/runtime/ids"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
)

// DownloadSubscription refreshes a stored subscription: the engine fetches
// the source, parses it into a standard document, and the result is
// validated and persisted along with any usage header the provider sent.
// Each step is its own exchange filtered by request id, so concurrent
// refreshes of different subscriptions never cross.
func (s *Service) DownloadSubscription(ctx context.Context, id string) (catalog.Subscription, error) {
	sub, ok := s.store.Subscription(id)
	if !ok {
		return catalog.Subscription{}, fmt.Errorf("subscription %s not in catalog", id)
	}
	if sub.SourceURL == "" {
		return catalog.Subscription{}, fmt.Errorf("subscription %s has no source url", id)
	}

	download, err := s.download(ctx, sub)
	if err != nil {
		return catalog.Subscription{}, err
	}

	content, err := s.parse(ctx, download.Content)
	if err != nil {
		return catalog.Subscription{}, err
	}

	if err := compose.ValidateBase(content); err != nil {
		return catalog.Subscription{}, err
	}

	if err := s.store.SaveSubscription(sub, content); err != nil {
		return catalog.Subscription{}, err
	}
	if err := s.store.TouchSubscription(sub.ID, download.Usage, time.Now()); err != nil {
		return catalog.Subscription{}, err
	}

	updated, _ := s.store.Subscription(id)
	s.Logger.Info("subscription refreshed", logging.LogFields{
		"id":  id,
		"url": sub.SourceURL,
	})
	return updated, nil
}

func (s *Service) download(ctx context.Context, sub catalog.Subscription) (envelope.DownloadResult, error) {
	reqID := ids.NewRequestID()
	req := envelope.DownloadRequest{
		RequestID:      reqID,
		URL:            sub.SourceURL,
		ProxyMode:      s.proxyMode(sub),
		UserAgent:      s.Conf.DownloadUserAgent,
		TimeoutSeconds: int64(s.Conf.DownloadTimeoutSeconds),
	}

	payload, err := s.client.Do(ctx, envelope.CmdDownload, req,
		envelope.EvtDownloadResult, exchange.WithRequestID(reqID))
	if err != nil {
		return envelope.DownloadResult{}, err
	}

	var result envelope.DownloadResult
	if err := (envelope.Envelope{Payload: payload}).Decode(&result); err != nil {
		return envelope.DownloadResult{}, err
	}
	if !result.IsSuccessful {
		return envelope.DownloadResult{}, fmt.Errorf("download failed: %s", result.ErrorMessage)
	}
	return result, nil
}

func (s *Service) parse(ctx context.Context, raw string) (string, error) {
	reqID := ids.NewRequestID()
	req := envelope.ParseRequest{RequestID: reqID, Content: raw}

	payload, err := s.client.Do(ctx, envelope.CmdParse, req,
		envelope.EvtParseResult, exchange.WithRequestID(reqID))
	if err != nil {
		return "", err
	}

	var result envelope.ParseResult
	if err := (envelope.Envelope{Payload: payload}).Decode(&result); err != nil {
		return "", err
	}
	if !result.IsSuccessful {
		return "", fmt.Errorf("parse failed: %s", result.ErrorMessage)
	}
	return result.Config, nil
}

// proxyMode picks the routing mode for a download: the subscription's
// stored preference, or direct unless the engine is up to proxy it.
func (s *Service) proxyMode(sub catalog.Subscription) string {
	if sub.ProxyRoutingMode != "" {
		return sub.ProxyRoutingMode
	}
	if s.EngineRunning() {
		return "proxy"
	}
	return "direct"
}
