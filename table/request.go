package table

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"voyager.com/comm/dispatch"
	"voyager.com/comm/future"
	"voyager.com/comm/logging"
	"voyager.com/comm/message"
	"voyager.com/comm/util"
)

// ActionResult is the outcome of one action request.
type ActionResult struct {
	Action   message.ClientAction
	FutureID uuid.UUID
	// TimedOut and Disconnected tell why Action was chosen by the server.
	TimedOut     bool
	Disconnected bool
}

func (r ActionResult) IsFallback() bool {
	return r.TimedOut || r.Disconnected
}

// FallbackAction is played for a player who did not answer: check when checking is
// legal, otherwise fold.
func FallbackAction(canCheck bool) message.ClientAction {
	if canCheck {
		return message.Check()
	}
	return message.Fold()
}

// RequestAction asks playerID to act and waits for the answer. A player who does not
// answer within the action timeout, or disconnects, gets FallbackAction. When ctx
// ends first (the hand is over) the request is withdrawn and ctx.Err() returned.
func (t *Table) RequestAction(ctx context.Context, playerID uint64, canCheck bool) (ActionResult, error) {
	logger := t.logger.With().Uint64(logging.PlayerIDKey, playerID).Logger()

	futureID, err := t.correlator.RegisterFor(playerID)
	if err != nil {
		return ActionResult{}, errors.Wrap(err, "Unable to register action request")
	}
	result := ActionResult{FutureID: futureID}

	request, err := message.NewRequestClientActionFutureMessage(futureID)
	if err != nil {
		t.correlator.Cancel(futureID)
		return result, err
	}
	if err := t.dispatcher.SendActionRequest(playerID, request); err != nil {
		t.correlator.Cancel(futureID)
		if errors.Is(err, dispatch.ErrPlayerNotConnected) {
			logger.Info().Msg("Player is not connected. Using fallback action.")
			return t.fallback(result, canCheck, false), nil
		}
		return result, err
	}

	value, err := t.correlator.Await(ctx, futureID, t.actionTimeout)
	if err != nil {
		var timeout future.TimeoutError
		var disconnected future.ClientDisconnectedError
		switch {
		case errors.As(err, &timeout):
			logger.Info().Str(logging.FutureIDKey, futureID.String()).Msg("Player did not act in time")
			return t.fallback(result, canCheck, true), nil
		case errors.As(err, &disconnected):
			logger.Info().Str(logging.FutureIDKey, futureID.String()).Msg("Player disconnected while acting")
			return t.fallback(result, canCheck, false), nil
		case ctx.Err() != nil:
			return result, ctx.Err()
		default:
			return result, err
		}
	}

	action, ok := value.(message.ClientAction)
	if !ok {
		// A reply without an action counts as no reply.
		logger.Warn().Str(logging.FutureIDKey, futureID.String()).
			Msg(fmt.Sprintf("Unexpected reply value %v. Using fallback action.", value))
		return t.fallback(result, canCheck, true), nil
	}
	result.Action = action
	return result, nil
}

func (t *Table) fallback(result ActionResult, canCheck bool, timedOut bool) ActionResult {
	result.Action = FallbackAction(canCheck)
	result.TimedOut = timedOut
	result.Disconnected = !timedOut
	util.Metrics.FallbackAction(result.Action.String())
	return result
}

func parseFutureID(id string) (uuid.UUID, error) {
	futureID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, InvalidMessageError{Msg: fmt.Sprintf("Invalid future id [%s]", id)}
	}
	return futureID, nil
}
