package algo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type bareAlgorithm struct{ Base }

func (*bareAlgorithm) Info() Info                                { return Info{DisplayName: "Bare"} }
func (*bareAlgorithm) Start(context.Context, Config) (bool, error) { return true, nil }

type tradingAlgorithm struct{ bareAlgorithm }

func (*tradingAlgorithm) ProcessTrade(context.Context, []Trade) error { return nil }
func (*tradingAlgorithm) ProcessDepthOfBook(context.Context, DepthOfBook) error {
	return nil
}

type explicitAlgorithm struct{ bareAlgorithm }

func (*explicitAlgorithm) ProcessTrade(context.Context, []Trade) error { return nil }
func (*explicitAlgorithm) Hooks() Hooks {
	return Hooks{Candle: func(context.Context, []Candle) error { return nil }}
}

func TestHooksOfDetectsImplementedInterfaces(t *testing.T) {
	hooks := HooksOf(&tradingAlgorithm{})
	require.NotNil(t, hooks.Trade)
	require.NotNil(t, hooks.DepthOfBook)
	require.Nil(t, hooks.Candle)
	require.Nil(t, hooks.OrderStatus)
	require.NotNil(t, hooks.Pause, "Base provides pause")
	require.Nil(t, hooks.Stop)

	require.Equal(t, Interests{Trades: true, DepthOfBook: true}, hooks.Interests())
}

func TestBaseAddsNoEventInterest(t *testing.T) {
	interests := HooksOf(&bareAlgorithm{}).Interests()
	for _, kind := range EventKinds {
		require.False(t, interests.Has(kind), kind)
	}
}

func TestHookProviderOverridesInterfaces(t *testing.T) {
	interests := HooksOf(&explicitAlgorithm{}).Interests()
	require.True(t, interests.Candles)
	require.False(t, interests.Trades)
}

func TestDescribeFallsBackToTypeName(t *testing.T) {
	d := Describe("Quiet", &quietAlgorithm{})
	require.Equal(t, "Quiet", d.DisplayName)
	require.False(t, d.HasConfigPanel())
	require.True(t, d.Matches("qui"))
	require.True(t, d.Matches(""))
	require.False(t, d.Matches("zzz"))
}

type quietAlgorithm struct{}

func (*quietAlgorithm) Info() Info                                { return Info{} }
func (*quietAlgorithm) Start(context.Context, Config) (bool, error) { return true, nil }

func TestBasePauseResume(t *testing.T) {
	var b Base
	require.False(t, b.Paused())
	require.NoError(t, b.Pause(context.Background()))
	require.True(t, b.Paused())
	require.NoError(t, b.Resume(context.Background()))
	require.False(t, b.Paused())
	require.NotNil(t, b.Logger())
	require.Nil(t, b.Gateway())
}

func TestParseEnums(t *testing.T) {
	require.Equal(t, ExchangeBinanceUS, ParseExchange("BinanceUS"))
	require.Equal(t, ExchangeBinanceUS, ParseExchange("binance-us"))
	require.Equal(t, ExchangeCoinbase, ParseExchange(" coinbase "))
	require.Equal(t, ExchangeUnknown, ParseExchange("mtgox"))

	require.Equal(t, SideBuy, ParseSide("buy_open"))
	require.Equal(t, SideSell, ParseSide("Sell"))
	require.Equal(t, SideUnknown, ParseSide(""))

	require.Equal(t, OrderTypeLimit, ParseOrderType("limit"))
	require.Equal(t, OrderTypeUnknown, ParseOrderType("stop"))

	require.Equal(t, TimeframeOneHour, ParseTimeframe("one_hour"))
	require.Equal(t, DefaultTimeframe, ParseTimeframe(""))
	require.Equal(t, OrderStateCancelled, ParseOrderState("canceled"))
	require.Equal(t, OrderStateUnknown, ParseOrderState("lost"))
}

func TestLifecycleStateText(t *testing.T) {
	for _, s := range []LifecycleState{StateInitialized, StateRunning, StatePaused, StateStopped} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back LifecycleState
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, s, back)
	}
	require.True(t, StatePaused.Listed())
	require.False(t, StateInitialized.Listed())
}
