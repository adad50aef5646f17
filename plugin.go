package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rbaliyan/inbox/store"
)

// Plugin extends the service. Plugins are initialized on Connect in
// registration order and closed on Close in reverse order.
//
// Deletes and clears have no hooks; subscribe to Service.Events() instead.
type Plugin interface {
	Name() string
	Init(ctx context.Context) error
	Close(ctx context.Context) error
}

// SendHook is a Plugin that takes part in Send, e.g. block lists,
// rate limits or content filters.
type SendHook interface {
	Plugin
	// BeforeSend runs after validation, before anything is stored.
	// A non-nil error aborts the send.
	BeforeSend(ctx context.Context, sender, receiver *store.User, text string) error
	// AfterSend runs once the message is stored and the receiver notified.
	// An error is returned from Send but nothing is undone.
	AfterSend(ctx context.Context, sender, receiver *store.User, result *SendResult) error
}

// PluginError identifies the plugin and step that failed.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s %s: %v", e.Plugin, e.Op, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

type pluginRegistry struct {
	plugins   []Plugin
	sendHooks []SendHook
	logger    *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	r.plugins = append(r.plugins, p)
	if h, ok := p.(SendHook); ok {
		r.sendHooks = append(r.sendHooks, h)
	}
}

// initAll initializes plugins in order. If one fails, those already
// initialized are closed again.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.plugins {
		if err := p.Init(ctx); err != nil {
			for _, done := range slices.Backward(r.plugins[:i]) {
				if closeErr := done.Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin after init failure",
						"plugin", done.Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for _, p := range slices.Backward(r.plugins) {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: p.Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

func (r *pluginRegistry) beforeSend(ctx context.Context, sender, receiver *store.User, text string) error {
	for _, h := range r.sendHooks {
		if err := h.BeforeSend(ctx, sender, receiver, text); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeSend", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterSend(ctx context.Context, sender, receiver *store.User, result *SendResult) error {
	for _, h := range r.sendHooks {
		if err := h.AfterSend(ctx, sender, receiver, result); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterSend", Err: err}
		}
	}
	return nil
}
