package aggregate

import "futures-account-monitor/internal/tracker"

// Scenario is the closed set of emission outcomes the order aggregator can
// produce, per the scenario tables for stop-like and general orders.
type Scenario string

const (
	ScenarioSLTPNew              Scenario = "SLTP_NEW"
	ScenarioSLTPPartialTimeout   Scenario = "SLTP_PARTIAL_TIMEOUT"
	ScenarioSLTPPartialCompleted Scenario = "SLTP_PARTIAL_COMPLETED"
	ScenarioSLTPFilled           Scenario = "SLTP_FILLED"
	ScenarioSLTPPartialCanceled  Scenario = "SLTP_PARTIAL_CANCELED"
	ScenarioSLTPCanceled         Scenario = "SLTP_CANCELED"

	ScenarioGeneralTimeout         Scenario = "GENERAL_TIMEOUT"
	ScenarioGeneralAggregated      Scenario = "GENERAL_AGGREGATED"
	ScenarioGeneralSingle          Scenario = "GENERAL_SINGLE"
	ScenarioGeneralPartialCanceled Scenario = "GENERAL_PARTIAL_CANCELED"
)

// priceSource decides which OrderEvent numeric field feeds displayPrice.
type priceSource string

const (
	priceSourceAverage priceSource = "average"
	priceSourceOrder   priceSource = "order"
)

// notificationKind is the sink a scenario's emission is routed to.
type notificationKind string

const (
	kindLifecycle notificationKind = "lifecycle"
	kindFill      notificationKind = "fill"
)

type scenarioMeta struct {
	stateLabel        string
	price             priceSource
	kind              notificationKind
	includeCumulative bool
}

var scenarioMetaTable = map[Scenario]scenarioMeta{
	ScenarioSLTPNew:              {stateLabel: "创建", price: priceSourceOrder, kind: kindLifecycle, includeCumulative: false},
	ScenarioSLTPPartialTimeout:   {stateLabel: "部分成交", price: priceSourceAverage, kind: kindFill, includeCumulative: true},
	ScenarioSLTPPartialCompleted: {stateLabel: "成交", price: priceSourceAverage, kind: kindFill, includeCumulative: true},
	ScenarioSLTPFilled:           {stateLabel: "成交", price: priceSourceAverage, kind: kindFill, includeCumulative: true},
	ScenarioSLTPPartialCanceled:  {stateLabel: "取消", price: priceSourceOrder, kind: kindLifecycle, includeCumulative: true},
	ScenarioSLTPCanceled:         {stateLabel: "取消", price: priceSourceOrder, kind: kindLifecycle, includeCumulative: false},

	ScenarioGeneralTimeout:         {stateLabel: "部分成交", price: priceSourceAverage, kind: kindFill, includeCumulative: true},
	ScenarioGeneralAggregated:      {stateLabel: "成交", price: priceSourceAverage, kind: kindFill, includeCumulative: true},
	ScenarioGeneralSingle:          {stateLabel: "成交", price: priceSourceAverage, kind: kindFill, includeCumulative: true},
	ScenarioGeneralPartialCanceled: {stateLabel: "取消", price: priceSourceOrder, kind: kindLifecycle, includeCumulative: true},
}

// flushMsg is the synthetic message a fired timer enqueues on the
// aggregator's own serial channel, per the timer-ownership design: the
// event-processing worker stays the sole mutator of context state.
type flushMsg struct {
	key      string
	scenario Scenario
}

// toTrackerScenario/fromTrackerScenario convert between this package's typed
// Scenario and the string tracker.Scenario the Context stores, to keep
// tracker decoupled from the state machine that owns the scenario names.
func toTrackerScenario(s Scenario) tracker.Scenario { return tracker.Scenario(s) }
