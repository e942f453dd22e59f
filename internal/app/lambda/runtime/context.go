package runtime

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// Context is the runtime record of one hosted algorithm instance. Only the
// context invokes its algorithm.
type Context struct {
	id        string
	name      string
	algorithm algo.Algorithm
	hooks     algo.Hooks
	gateway   algo.Gateway
	logger    observability.Logger
	createdAt time.Time

	state   atomic.Int32
	retired atomic.Bool

	// lifecycle serialises Start/Pause/Resume/Stop on one instance.
	lifecycle sync.Mutex
	// deliveries holds one lock per event kind so each kind reaches the
	// algorithm in arrival order while kinds proceed independently.
	deliveries [len(kindSlots)]sync.Mutex

	cfgMu  sync.RWMutex
	config algo.Config
}

var kindSlots = [...]algo.EventKind{algo.EventTrade, algo.EventCandle, algo.EventDepthOfBook, algo.EventOrderStatus}

func slotOf(kind algo.EventKind) int {
	for i, k := range kindSlots {
		if k == kind {
			return i
		}
	}
	return -1
}

func newContext(id, name string, a algo.Algorithm, logger observability.Logger) *Context {
	c := &Context{
		id:        id,
		name:      name,
		algorithm: a,
		hooks:     algo.HooksOf(a),
		logger:    logger,
		createdAt: time.Now().UTC(),
		config:    algo.Config{},
	}
	c.state.Store(int32(algo.StateInitialized))
	return c
}

// ID returns the platform-assigned instance id.
func (c *Context) ID() string { return c.id }

// Name returns the canonical algorithm type name.
func (c *Context) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Context) State() algo.LifecycleState {
	return algo.LifecycleState(c.state.Load())
}

func (c *Context) setState(s algo.LifecycleState) {
	c.state.Store(int32(s))
}

// Interests reports the event kinds the instance listens to.
func (c *Context) Interests() algo.Interests {
	return c.hooks.Interests()
}

// Descriptor recomputes the discovery view from the live object.
func (c *Context) Descriptor() algo.Descriptor {
	return algo.DescribeWith(c.name, c.algorithm, c.hooks)
}

// Config returns the configuration the instance runs with. Algorithms that report
// their own configuration take precedence over the last applied Start payload.
func (c *Context) Config() algo.Config {
	if reporter, ok := c.algorithm.(algo.ConfigReporter); ok {
		if cfg := safeConfiguration(reporter); cfg != nil {
			return cfg.Clone()
		}
	}
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.config.Clone()
}

func safeConfiguration(reporter algo.ConfigReporter) (cfg algo.Config) {
	defer func() {
		if recover() != nil {
			cfg = nil
		}
	}()
	return reporter.Configuration()
}

func (c *Context) applyConfig(cfg algo.Config) {
	c.cfgMu.Lock()
	c.config = cfg.Clone()
	c.cfgMu.Unlock()
}

// deliver runs fn under the kind lock. It reports false when the context was
// retired before the delivery could start.
func (c *Context) deliver(kind algo.EventKind, fn func() error) (bool, error) {
	slot := slotOf(kind)
	if slot < 0 {
		return false, nil
	}
	c.deliveries[slot].Lock()
	defer c.deliveries[slot].Unlock()
	if c.retired.Load() {
		return false, nil
	}
	return true, fn()
}

// retire marks the context removed. It waits for in-flight deliveries and
// guarantees no new delivery starts. Only the first caller gets true.
func (c *Context) retire() bool {
	for i := range c.deliveries {
		c.deliveries[i].Lock()
	}
	first := c.retired.CAS(false, true)
	for i := len(c.deliveries) - 1; i >= 0; i-- {
		c.deliveries[i].Unlock()
	}
	return first
}

// Retired reports whether Stop removed the context.
func (c *Context) Retired() bool {
	return c.retired.Load()
}

// Snapshot is an immutable view of a context.
type Snapshot struct {
	InstanceID string
	Descriptor algo.Descriptor
	State      algo.LifecycleState
	Config     algo.Config
	CreatedAt  time.Time
}

// Snapshot captures the current view of the context.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		InstanceID: c.id,
		Descriptor: c.Descriptor(),
		State:      c.State(),
		Config:     c.Config(),
		CreatedAt:  c.createdAt,
	}
}
