package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Instrument names shared by the runtime, gateway and views.
const (
	MetricEventsDispatched = "algohost.events.dispatched"
	MetricEventsFailed     = "algohost.events.failed"
	MetricDispatchDuration = "algohost.events.dispatch.duration"
	MetricLifecycleOps     = "algohost.lifecycle.operations"
	MetricGatewayCalls     = "algohost.gateway.calls"
	MetricGatewayDuration  = "algohost.gateway.duration"
)

// Attribute keys for host telemetry.
const (
	// AttrEventKind labels event deliveries (trade, candle, depth_of_book, order_status).
	AttrEventKind = attribute.Key("event.kind")
	// AttrOperation names a lifecycle or gateway operation.
	AttrOperation = attribute.Key("operation")
	// AttrResult records success or the error code of a failure.
	AttrResult = attribute.Key("result")
	// AttrAlgorithm is the registered algorithm name.
	AttrAlgorithm = attribute.Key("algorithm")
	// AttrEnvironment is the deployment environment.
	AttrEnvironment = attribute.Key("environment")
)

// Result values other than error codes.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// EventAttributes returns attributes for event delivery metrics.
func EventAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(Environment()),
		AttrEventKind.String(kind),
	}
}

// OperationAttributes returns attributes for lifecycle and gateway outcomes.
func OperationAttributes(operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(Environment()),
		AttrOperation.String(operation),
		AttrResult.String(result),
	}
}
