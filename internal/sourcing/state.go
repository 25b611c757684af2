package sourcing

import "github.com/rs/zerolog"

// RequestState tracks a sourcing request through the pipeline. Transitions
// are linear; Failed is terminal and reachable from any state.
type RequestState int

const (
	StateInit RequestState = iota
	StateStrategyDecided
	StateFanoutLaunched
	StateFanoutJoined
	StatePlansBuilt
	StateResponseEmitted
	StateFailed
)

func (s RequestState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStrategyDecided:
		return "STRATEGY_DECIDED"
	case StateFanoutLaunched:
		return "FANOUT_LAUNCHED"
	case StateFanoutJoined:
		return "FANOUT_JOINED"
	case StatePlansBuilt:
		return "PLANS_BUILT"
	case StateResponseEmitted:
		return "RESPONSE_EMITTED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// tracker logs state transitions for one request.
type tracker struct {
	state     RequestState
	requestID string
	orderID   string
	logger    zerolog.Logger
}

func newTracker(requestID, orderID string, logger zerolog.Logger) *tracker {
	return &tracker{state: StateInit, requestID: requestID, orderID: orderID, logger: logger}
}

func (t *tracker) transition(to RequestState) {
	if t.state == StateFailed {
		return
	}
	t.logger.Debug().
		Str("request_id", t.requestID).
		Str("order_id", t.orderID).
		Str("from", t.state.String()).
		Str("to", to.String()).
		Msg("request state transition")
	t.state = to
}

func (t *tracker) fail(reason string) {
	t.logger.Error().
		Str("request_id", t.requestID).
		Str("order_id", t.orderID).
		Str("from", t.state.String()).
		Str("reason", reason).
		Msg("request failed")
	t.state = StateFailed
}
