package runtime

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/observability"
)

// Hook names used in metrics and error envelopes.
const (
	hookStart       = "start"
	hookPause       = "pause"
	hookResume      = "resume"
	hookStop        = "stop"
	hookTrade       = "trade"
	hookCandle      = "candle"
	hookDepthOfBook = "depth_of_book"
	hookOrderStatus = "order_status"
)

// invoke runs fn as the named hook of c. Errors and panics come back as
// hook_failed envelopes; nothing escapes.
func invoke(c *Context, hook string, metrics *HookMetrics, logger observability.Logger, fn func() error) (err error) {
	metrics.ObserveInvocation(c.id, hook)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObservePanic(c.id, hook)
			logger.Error("algorithm hook panicked",
				observability.F("instance_id", c.id),
				observability.F("algorithm", c.name),
				observability.F("hook", hook),
				observability.F("panic", fmt.Sprint(rec)),
				observability.F("stack", string(debug.Stack())),
			)
			err = errs.New(hook, errs.CodeHookFailed,
				errs.WithInstance(c.id),
				errs.WithAlgorithm(c.name),
				errs.WithMessage(fmt.Sprintf("error in %s hook: panic: %v", hook, rec)),
			)
		}
		metrics.ObserveDuration(c.id, hook, time.Since(start))
	}()
	if callErr := fn(); callErr != nil {
		metrics.ObserveFailure(c.id, hook)
		return errs.New(hook, errs.CodeHookFailed,
			errs.WithInstance(c.id),
			errs.WithAlgorithm(c.name),
			errs.WithMessage("error in "+hook+" hook"),
			errs.WithCause(callErr),
		)
	}
	return nil
}
