package poker

import "fmt"

// GameState is the snapshot of the table the rules engine publishes after every change.
type GameState int32

const (
	GameState_STOPPED GameState = iota
	GameState_WAITING_FOR_PLAYERS
	GameState_PREFLOP
	GameState_FLOP
	GameState_TURN
	GameState_RIVER
	GameState_END_OF_ROUND
)

var GameState_name = map[GameState]string{
	GameState_STOPPED:             "STOPPED",
	GameState_WAITING_FOR_PLAYERS: "WAITING_FOR_PLAYERS",
	GameState_PREFLOP:             "PREFLOP",
	GameState_FLOP:                "FLOP",
	GameState_TURN:                "TURN",
	GameState_RIVER:               "RIVER",
	GameState_END_OF_ROUND:        "END_OF_ROUND",
}

var GameState_value = map[string]GameState{
	"STOPPED":             GameState_STOPPED,
	"WAITING_FOR_PLAYERS": GameState_WAITING_FOR_PLAYERS,
	"PREFLOP":             GameState_PREFLOP,
	"FLOP":                GameState_FLOP,
	"TURN":                GameState_TURN,
	"RIVER":               GameState_RIVER,
	"END_OF_ROUND":        GameState_END_OF_ROUND,
}

func (s GameState) String() string {
	if name, ok := GameState_name[s]; ok {
		return name
	}
	return fmt.Sprintf("GameState(%d)", int32(s))
}

func (s GameState) IsValid() bool {
	_, ok := GameState_name[s]
	return ok
}

func ParseGameState(name string) (GameState, error) {
	s, ok := GameState_value[name]
	if !ok {
		return GameState_STOPPED, fmt.Errorf("invalid game state [%s]", name)
	}
	return s, nil
}
