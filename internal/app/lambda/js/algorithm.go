package js

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// Script method names looked up on the object returned by create(env).
const (
	methodStart       = "start"
	methodPause       = "pause"
	methodResume      = "resume"
	methodStop        = "stop"
	methodTrade       = "onTrade"
	methodCandle      = "onCandle"
	methodDepthOfBook = "onDepthOfBook"
	methodOrderStatus = "onOrderStatus"
	methodConfig      = "configuration"
)

// Algorithm adapts a script module to algo.Algorithm. Its capabilities are the
// methods present on the handler object when the instance is created.
type Algorithm struct {
	instance *Instance
	handler  *goja.Object
	metadata Metadata
	methods  map[string]bool
	bridge   *bridge

	// active is the context of the call currently running on the VM goroutine.
	// Only read and written from that goroutine.
	active context.Context
}

var _ interface {
	algo.Algorithm
	algo.HookProvider
	algo.GatewayBinder
	algo.LoggerBinder
	algo.ConfigReporter
	algo.Closer
} = (*Algorithm)(nil)

// NewAlgorithm instantiates module in a fresh VM and calls its create export.
func NewAlgorithm(module *Module) (*Algorithm, error) {
	if module == nil {
		return nil, fmt.Errorf("js algorithm: module required")
	}
	instance, err := NewInstance(module)
	if err != nil {
		return nil, err
	}

	a := &Algorithm{
		instance: instance,
		metadata: CloneMetadata(module.Metadata),
		methods:  make(map[string]bool),
		bridge:   &bridge{},
	}
	env := map[string]any{
		"metadata": CloneMetadata(module.Metadata),
		"gateway":  a.gatewayHelpers(),
		"log":      a.bridge.logFunc(false),
		"warn":     a.bridge.logFunc(true),
		"sleep":    sleepHelper,
	}

	value, err := instance.Execute(context.Background(), func(rt *goja.Runtime, exports *goja.Object) (goja.Value, error) {
		if err := rt.Set("console", a.bridge.console(rt)); err != nil {
			return nil, err
		}
		created, err := callMember(rt, exports, "create", []any{env})
		if err != nil {
			return nil, err
		}
		if created == nil || goja.IsUndefined(created) || goja.IsNull(created) {
			return nil, fmt.Errorf("create returned no object")
		}
		obj := created.ToObject(rt)
		for _, name := range []string{
			methodStart, methodPause, methodResume, methodStop,
			methodTrade, methodCandle, methodDepthOfBook, methodOrderStatus, methodConfig,
		} {
			if _, ok := goja.AssertFunction(obj.Get(name)); ok {
				a.methods[name] = true
			}
		}
		return obj, nil
	})
	if err != nil {
		instance.Close()
		return nil, fmt.Errorf("js algorithm %s: create failed: %w", module.Name, err)
	}
	handler, ok := value.(*goja.Object)
	if !ok {
		instance.Close()
		return nil, fmt.Errorf("js algorithm %s: create result not object", module.Name)
	}
	a.handler = handler
	return a, nil
}

// Name returns the module name.
func (a *Algorithm) Name() string {
	return a.metadata.Name
}

// Info implements algo.Algorithm.
func (a *Algorithm) Info() algo.Info {
	return a.metadata.Info()
}

// Start calls the script's start(config). A script without start, or whose
// start returns undefined, is considered started.
func (a *Algorithm) Start(ctx context.Context, cfg algo.Config) (bool, error) {
	if !a.methods[methodStart] {
		return true, nil
	}
	value, err := a.call(ctx, methodStart, map[string]any(cfg.Clone()))
	if err != nil {
		return false, err
	}
	if value == nil || goja.IsUndefined(value) {
		return true, nil
	}
	return value.ToBoolean(), nil
}

// Hooks implements algo.HookProvider.
func (a *Algorithm) Hooks() algo.Hooks {
	var h algo.Hooks
	if a.methods[methodPause] {
		h.Pause = func(ctx context.Context) error { return a.invoke(ctx, methodPause) }
	}
	if a.methods[methodResume] {
		h.Resume = func(ctx context.Context) error { return a.invoke(ctx, methodResume) }
	}
	if a.methods[methodStop] {
		h.Stop = func(ctx context.Context) error { return a.invoke(ctx, methodStop) }
	}
	if a.methods[methodTrade] {
		h.Trade = func(ctx context.Context, trades []algo.Trade) error {
			return a.invoke(ctx, methodTrade, tradesToJS(trades))
		}
	}
	if a.methods[methodCandle] {
		h.Candle = func(ctx context.Context, candles []algo.Candle) error {
			return a.invoke(ctx, methodCandle, candlesToJS(candles))
		}
	}
	if a.methods[methodDepthOfBook] {
		h.DepthOfBook = func(ctx context.Context, book algo.DepthOfBook) error {
			return a.invoke(ctx, methodDepthOfBook, bookToJS(book))
		}
	}
	if a.methods[methodOrderStatus] {
		h.OrderStatus = func(ctx context.Context, status algo.OrderStatus) error {
			return a.invoke(ctx, methodOrderStatus, orderStatusToJS(status))
		}
	}
	return h
}

// Configuration reports the script's configuration() result when it declares one.
func (a *Algorithm) Configuration() algo.Config {
	if !a.methods[methodConfig] {
		return nil
	}
	value, err := a.call(context.Background(), methodConfig)
	if err != nil || value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	exported, ok := value.Export().(map[string]any)
	if !ok {
		return nil
	}
	return algo.Config(exported)
}

// BindGateway implements algo.GatewayBinder.
func (a *Algorithm) BindGateway(gw algo.Gateway) {
	a.bridge.gateway.Store(&gatewayRef{gw: gw})
}

// BindLogger implements algo.LoggerBinder.
func (a *Algorithm) BindLogger(logger observability.Logger) {
	a.bridge.logger.Store(&loggerRef{logger: observability.OrNop(logger)})
}

// Close releases the VM.
func (a *Algorithm) Close() {
	if a == nil {
		return
	}
	a.instance.Close()
}

func (a *Algorithm) invoke(ctx context.Context, method string, args ...any) error {
	_, err := a.call(ctx, method, args...)
	if errors.Is(err, ErrFunctionMissing) {
		return nil
	}
	return err
}

func (a *Algorithm) call(ctx context.Context, method string, args ...any) (goja.Value, error) {
	return a.instance.Execute(ctx, func(rt *goja.Runtime, _ *goja.Object) (goja.Value, error) {
		a.active = ctx
		defer func() { a.active = nil }()
		return callMember(rt, a.handler, method, args)
	})
}

// callContext is the context gateway helpers run under. Scripts call the
// gateway synchronously from within a hook, so the hook's context applies.
func (a *Algorithm) callContext() context.Context {
	if a.active != nil {
		return a.active
	}
	return context.Background()
}

type gatewayRef struct {
	gw algo.Gateway
}

type loggerRef struct {
	logger observability.Logger
}

// bridge holds the host services bound after creation. Scripts may reach them
// before binding, in which case calls fail or log nowhere.
type bridge struct {
	gateway atomic.Pointer[gatewayRef]
	logger  atomic.Pointer[loggerRef]
}

func (b *bridge) gw() (algo.Gateway, error) {
	ref := b.gateway.Load()
	if ref == nil || ref.gw == nil {
		return nil, fmt.Errorf("gateway unavailable")
	}
	return ref.gw, nil
}

func (b *bridge) log() observability.Logger {
	ref := b.logger.Load()
	if ref == nil {
		return observability.OrNop(nil)
	}
	return ref.logger
}

func (b *bridge) logFunc(warn bool) func(...any) {
	return func(args ...any) {
		msg := stringifyLogArgs(args...)
		if msg == "" {
			return
		}
		if warn {
			b.log().Warn(msg, observability.F("source", "script"))
			return
		}
		b.log().Info(msg, observability.F("source", "script"))
	}
}

func (b *bridge) console(rt *goja.Runtime) *goja.Object {
	console := rt.NewObject()
	info := b.logFunc(false)
	warn := b.logFunc(true)
	_ = console.Set("log", info)
	_ = console.Set("info", info)
	_ = console.Set("warn", warn)
	_ = console.Set("error", func(args ...any) {
		if msg := stringifyLogArgs(args...); msg != "" {
			b.log().Error(msg, observability.F("source", "script"))
		}
	})
	return console
}

func stringifyLogArgs(args ...any) string {
	if len(args) == 0 {
		return ""
	}
	var builder strings.Builder
	for i, arg := range args {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(fmt.Sprint(arg))
	}
	return builder.String()
}

func sleepHelper(value any) {
	if d := parseSleepDuration(value); d > 0 {
		time.Sleep(d)
	}
}

// parseSleepDuration accepts milliseconds as a number or a Go duration string.
func parseSleepDuration(value any) time.Duration {
	var d time.Duration
	switch v := value.(type) {
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		d = parsed
	case int64:
		d = time.Duration(v) * time.Millisecond
	case int:
		d = time.Duration(v) * time.Millisecond
	case float64:
		d = time.Duration(v * float64(time.Millisecond))
	}
	if d < 0 {
		return 0
	}
	return d
}
