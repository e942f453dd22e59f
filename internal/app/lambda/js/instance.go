package js

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Instance is an isolated goja VM for one module. goja runtimes are not safe for
// concurrent use, so every call is serialised onto the instance goroutine.
type Instance struct {
	module *Module
	rt     *goja.Runtime
	export *goja.Object
	queue  chan func(*goja.Runtime)
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewInstance evaluates module in a fresh runtime.
func NewInstance(module *Module) (*Instance, error) {
	if module == nil {
		return nil, fmt.Errorf("algorithm instance: module required")
	}
	rt := goja.New()
	export, err := runModule(rt, module.Program)
	if err != nil {
		return nil, fmt.Errorf("algorithm instance: execute %s: %w", module.Path, err)
	}
	instance := &Instance{
		module: module,
		rt:     rt,
		export: export,
		queue:  make(chan func(*goja.Runtime)),
	}
	instance.wg.Add(1)
	go instance.loop()
	return instance, nil
}

func (i *Instance) loop() {
	defer i.wg.Done()
	for cb := range i.queue {
		i.rt.ClearInterrupt()
		cb(i.rt)
	}
}

// Execute runs fn on the instance goroutine. When ctx ends first the running
// script is interrupted and the interruption is returned as the error. Panics
// raised by fn are returned as errors.
func (i *Instance) Execute(ctx context.Context, fn func(rt *goja.Runtime, exports *goja.Object) (goja.Value, error)) (goja.Value, error) {
	if i == nil {
		return nil, fmt.Errorf("algorithm instance: nil receiver")
	}
	if fn == nil {
		return nil, fmt.Errorf("algorithm instance: callback required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	wait := make(chan result, 1)

	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()
		return nil, ErrInstanceClosed
	}
	job := func(rt *goja.Runtime) {
		defer func() {
			if rec := recover(); rec != nil {
				wait <- result{err: fmt.Errorf("algorithm instance: panic: %v", rec)}
			}
		}()
		// An interrupt raised before the loop cleared the previous one is lost.
		if err := ctx.Err(); err != nil {
			wait <- result{err: err}
			return
		}
		val, err := fn(rt, i.export)
		wait <- result{value: val, err: err}
	}
	select {
	case i.queue <- job:
		i.mu.RUnlock()
	case <-ctx.Done():
		i.mu.RUnlock()
		return nil, fmt.Errorf("algorithm instance: interrupted: %w", ctx.Err())
	}

	select {
	case outcome := <-wait:
		return outcome.value, outcome.err
	case <-ctx.Done():
		i.rt.Interrupt(ctx.Err())
		outcome := <-wait
		if outcome.err == nil {
			return outcome.value, nil
		}
		return nil, fmt.Errorf("algorithm instance: interrupted: %w", ctx.Err())
	}
}

// Call invokes the named export with args.
func (i *Instance) Call(ctx context.Context, function string, args ...any) (goja.Value, error) {
	fn := strings.TrimSpace(function)
	if fn == "" {
		return nil, fmt.Errorf("algorithm instance: function name required")
	}
	return i.Execute(ctx, func(rt *goja.Runtime, exports *goja.Object) (goja.Value, error) {
		return callMember(rt, exports, fn, args)
	})
}

// CallMethod invokes method on target with target bound as this.
func (i *Instance) CallMethod(ctx context.Context, target *goja.Object, method string, args ...any) (goja.Value, error) {
	if target == nil {
		return nil, fmt.Errorf("algorithm instance: target required")
	}
	name := strings.TrimSpace(method)
	if name == "" {
		return nil, fmt.Errorf("algorithm instance: method name required")
	}
	return i.Execute(ctx, func(rt *goja.Runtime, _ *goja.Object) (goja.Value, error) {
		return callMember(rt, target, name, args)
	})
}

func callMember(rt *goja.Runtime, target *goja.Object, name string, args []any) (goja.Value, error) {
	value := target.Get(name)
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, ErrFunctionMissing
	}
	callable, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("algorithm instance: %q not callable", name)
	}
	params := make([]goja.Value, len(args))
	for idx, arg := range args {
		params[idx] = rt.ToValue(arg)
	}
	return callable(target, params...)
}

// Close stops the instance goroutine and releases the runtime.
func (i *Instance) Close() {
	if i == nil {
		return
	}
	i.once.Do(func() {
		i.mu.Lock()
		i.closed = true
		close(i.queue)
		i.mu.Unlock()
		i.wg.Wait()
	})
}

type result struct {
	value goja.Value
	err   error
}
