// Package app wires configuration, the formatter registry, transport,
// and the HTTP surface into one runnable gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"hookbot/internal/config"
	"hookbot/internal/dispatch"
	"hookbot/internal/format"
	"hookbot/internal/router"
	"hookbot/internal/scheduler"
	"hookbot/internal/server"
	"hookbot/internal/templates"
	"hookbot/internal/transport"
	"hookbot/internal/transport/telegram"
	"hookbot/pkg/logx"
)

type App struct {
	cfg  *config.Config
	logs *logx.Service
	log  logx.Logger

	engine   *format.Engine
	registry *format.Registry
	store    *templates.Store
	client   *telegram.Client
	router   *router.Router
	server   *server.Server
	sched    *scheduler.Scheduler
	poller   *telegram.Poller

	updates chan *transport.Update

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	console := true
	if cfg.Logging.Console != nil {
		console = *cfg.Logging.Console
	}
	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	if strings.TrimSpace(cfg.Bot.Token) == "" && !cfg.Bot.TestMode {
		logs.Close()
		return nil, config.Errorf("bot", "token is required outside test mode")
	}

	a := &App{
		cfg:      cfg,
		logs:     logs,
		log:      log,
		engine:   format.NewEngine(),
		registry: format.NewRegistry(),
	}

	var err error
	a.store, err = templates.New(a.engine, cfg.Templates, cfg.TemplatesDir, log.With(logx.String("comp", "templates")))
	if err != nil {
		logs.Close()
		return nil, err
	}

	a.client = telegram.NewClient(cfg.Bot.Token,
		log.With(logx.String("comp", "telegram")),
		telegram.WithTestMode(cfg.Bot.TestMode))

	retryBase, err := cfg.Notifier.RetryBaseDuration()
	if err != nil {
		logs.Close()
		return nil, err
	}
	retryMaxDelay, err := cfg.Notifier.RetryMaxDelayDuration()
	if err != nil {
		logs.Close()
		return nil, err
	}
	dispatcher := dispatch.NewDispatcher(a.client, dispatch.Options{
		RatePerSec:    cfg.Notifier.RatePerSec,
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, log.With(logx.String("comp", "dispatch")))

	assembler := dispatch.NewAssembler(a.registry, a.store, a.engine, log.With(logx.String("comp", "assemble")))
	a.router = router.New(a.engine, a.client, log.With(logx.String("comp", "router")))
	a.server = server.New(cfg.Server, assembler, dispatcher, a.router, a.registry, log.With(logx.String("comp", "server")))
	a.sched = scheduler.New(a.server.Fire, log.With(logx.String("comp", "scheduler")))

	// The webhook route mounts before the endpoints so a colliding
	// endpoint path fails its own registration, not the process.
	switch cfg.Bot.Mode {
	case "", "webhook":
		if err := a.server.RegisterWebhook(cfg.Bot.WebhookPath); err != nil {
			logs.Close()
			return nil, err
		}
	case "poll":
		pollTimeout, err := cfg.Bot.PollTimeoutDuration()
		if err != nil {
			logs.Close()
			return nil, err
		}
		poller, err := telegram.NewPoller(cfg.Bot.Token, pollTimeout, log.With(logx.String("comp", "poller")))
		if err != nil {
			logs.Close()
			return nil, err
		}
		a.poller = poller
		a.updates = make(chan *transport.Update, 64)
	default:
		logs.Close()
		return nil, config.Errorf("bot", "unknown mode %q", cfg.Bot.Mode)
	}

	if err := a.register(); err != nil {
		logs.Close()
		return nil, err
	}

	return a, nil
}

// register compiles every configured endpoint, command, callback and
// schedule. A bad entry is skipped with a warning unless server.strict
// is set, in which case it fails startup.
func (a *App) register() error {
	strict := a.cfg.Server.Strict
	reject := func(section, name string, err error) error {
		if strict {
			return fmt.Errorf("%s %s: %w", section, name, err)
		}
		a.log.Warn("config entry skipped",
			logx.String("section", section),
			logx.String("name", name),
			logx.Err(err))
		return nil
	}

	for i := range a.cfg.Endpoints {
		spec := &a.cfg.Endpoints[i]
		ep, err := dispatch.CompileEndpoint(a.engine, spec)
		if err != nil {
			if err := reject("endpoint", spec.Path, err); err != nil {
				return err
			}
			continue
		}
		for _, chatID := range spec.TargetChatIDs() {
			for _, warn := range config.ChatIDWarnings(chatID) {
				a.log.Warn("chat id looks suspicious",
					logx.String("endpoint", spec.Path),
					logx.String("warning", warn))
			}
		}
		if err := a.server.RegisterEndpoint(ep); err != nil {
			if err := reject("endpoint", spec.Path, err); err != nil {
				return err
			}
		}
	}

	for _, cmd := range a.cfg.Commands {
		if err := a.router.AddCommand(cmd); err != nil {
			if err := reject("command", cmd.Command, err); err != nil {
				return err
			}
		}
	}
	for _, cb := range a.cfg.Callbacks {
		if err := a.router.AddCallback(cb); err != nil {
			if err := reject("callback", cb.Data, err); err != nil {
				return err
			}
		}
	}
	for _, sch := range a.cfg.Schedules {
		if err := a.sched.Add(sch); err != nil {
			if err := reject("schedule", sch.Name, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// Registry exposes the formatter registry so plugins can register
// before Start.
func (a *App) Registry() *format.Registry { return a.registry }

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.runCancel != nil {
		a.runMu.Unlock()
		return errors.New("already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runMu.Unlock()

	a.runWG.Add(1)
	go func() {
		defer a.runWG.Done()
		if err := a.server.Start(runCtx); err != nil {
			a.log.Error("http server failed", logx.Err(err))
		}
	}()

	if a.cfg.TemplatesDir != "" {
		a.runWG.Add(1)
		go func() {
			defer a.runWG.Done()
			if err := a.store.Watch(runCtx); err != nil {
				a.log.Warn("template watch stopped", logx.Err(err))
			}
		}()
	}

	if a.poller != nil {
		a.runWG.Add(1)
		go func() {
			defer a.runWG.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case up := <-a.updates:
					a.router.HandleUpdate(runCtx, up)
				}
			}
		}()
		if err := a.poller.Start(runCtx, a.updates); err != nil {
			cancel()
			return err
		}
	}

	a.sched.Start()
	a.log.Info("gateway started",
		logx.Int("endpoints", len(a.cfg.Endpoints)),
		logx.String("mode", a.cfg.Bot.Mode))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	a.sched.Stop()
	if a.poller != nil {
		a.poller.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out")
	}
	return a.logs.Close()
}
