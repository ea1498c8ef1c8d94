package container

import (
	"context"
	"fmt"
	"time"

	hotconfig "futures-account-monitor/internal/config"
	"futures-account-monitor/internal/validation"
)

// streamComponent owns the WS connection (with its own reconnect/backoff
// loop) plus the listenKey keepalive ticker. Grounded on the teacher's
// ticker+stopChan/doneChan component idiom (internal/risk/monitor.go).
type streamComponent struct {
	container *Container

	cancel   context.CancelFunc
	stopChan chan struct{}
	doneChan chan struct{}
	healthy  bool
}

func (s *streamComponent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.healthy = true

	c := s.container
	handler := &streamHandler{container: c}

	listenKeyFn := func(ctx context.Context) (string, error) {
		key, err := c.clients.ListenKey.Create(ctx)
		if err != nil {
			c.mon.RecordRESTError("listen_key_create")
			return "", err
		}
		c.mon.RecordWSConnection()
		return key, nil
	}

	go func() {
		if err := c.clients.WS.Run(runCtx, listenKeyFn, handler); err != nil && runCtx.Err() == nil {
			c.log.LogError(err, map[string]interface{}{"component": "stream"})
		}
	}()

	go s.runKeepalive(runCtx)

	return nil
}

func (s *streamComponent) runKeepalive(ctx context.Context) {
	defer close(s.doneChan)

	interval := time.Duration(s.container.cfg.Engine.ListenKeyKeepAliveMs) * time.Millisecond
	if interval <= 0 {
		interval = 25 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.container.clients.ListenKey.Keepalive(ctx); err != nil {
				s.container.mon.RecordRESTError("listen_key_keepalive")
				s.container.log.LogError(err, map[string]interface{}{"action": "listen_key_keepalive"})
				continue
			}
			s.container.mon.RecordListenKeyRenewal()
		}
	}
}

func (s *streamComponent) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stopChan != nil {
		select {
		case <-s.stopChan:
		default:
			close(s.stopChan)
		}
	}
	if s.doneChan != nil {
		select {
		case <-s.doneChan:
		case <-time.After(5 * time.Second):
		}
	}
	s.healthy = false
	_ = s.container.clients.ListenKey.Close(context.Background())
	return nil
}

func (s *streamComponent) Health() error {
	if !s.healthy {
		return fmt.Errorf("stream not running")
	}
	return nil
}

// aggregatorComponent drives aggregate.Aggregator.Run on its own goroutine
// per the package's single-writer requirement.
type aggregatorComponent struct {
	container *Container

	cancel  context.CancelFunc
	done    chan struct{}
	healthy bool
}

func (a *aggregatorComponent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.healthy = true

	go func() {
		defer close(a.done)
		a.container.aggregator.Run(runCtx)
	}()
	return nil
}

func (a *aggregatorComponent) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.healthy = false
	if a.done != nil {
		select {
		case <-a.done:
		case <-time.After(5 * time.Second):
		}
	}
	return nil
}

func (a *aggregatorComponent) Health() error {
	if !a.healthy {
		return fmt.Errorf("aggregator not running")
	}
	return nil
}

// hotReloadComponent adapts hotconfig.HotReloader to the Lifecycle
// interface. Absent (nil) when the rules file could not be watched.
type hotReloadComponent struct {
	reloader *hotconfig.HotReloader
}

func (h *hotReloadComponent) Start(ctx context.Context) error {
	if h.reloader == nil {
		return nil
	}
	return h.reloader.Start(ctx)
}

func (h *hotReloadComponent) Stop() error {
	if h.reloader == nil {
		return nil
	}
	return h.reloader.Stop()
}

func (h *hotReloadComponent) Health() error { return nil }

// validationComponent adapts validation.Service to the Lifecycle interface.
type validationComponent struct {
	svc *validation.Service

	healthy bool
}

func (v *validationComponent) Start(ctx context.Context) error {
	v.svc.Start(ctx)
	v.healthy = true
	return nil
}

func (v *validationComponent) Stop() error {
	v.svc.Stop()
	v.healthy = false
	return nil
}

func (v *validationComponent) Health() error {
	if !v.healthy {
		return fmt.Errorf("validation service not running")
	}
	return nil
}
