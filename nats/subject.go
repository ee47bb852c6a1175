package nats

import (
	"fmt"
	"strconv"
	"strings"
)

func GetHand2AllPlayerSubject(gameCode string) string {
	return fmt.Sprintf("hand.%s.player.all", gameCode)
}

func GetHand2PlayerSubject(gameCode string, playerID uint64) string {
	return fmt.Sprintf("hand.%s.player.%d", gameCode, playerID)
}

func GetPlayer2CommSubject(gameCode string, playerID uint64) string {
	return fmt.Sprintf("player.%s.comm.%d", gameCode, playerID)
}

// GetPlayer2CommWildcard matches the inbound subjects of every player of the game.
func GetPlayer2CommWildcard(gameCode string) string {
	return fmt.Sprintf("player.%s.comm.*", gameCode)
}

func GetPingSubject(gameCode string) string {
	return fmt.Sprintf("ping.%s", gameCode)
}

func GetPongSubject(gameCode string) string {
	return fmt.Sprintf("pong.%s", gameCode)
}

// playerIDFromSubject returns the player id in the last token of subject.
func playerIDFromSubject(subject string) (uint64, error) {
	idx := strings.LastIndexByte(subject, '.')
	if idx < 0 || idx == len(subject)-1 {
		return 0, fmt.Errorf("no player id in subject [%s]", subject)
	}
	playerID, err := strconv.ParseUint(subject[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid player id in subject [%s]", subject)
	}
	return playerID, nil
}
