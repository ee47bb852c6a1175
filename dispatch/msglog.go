package dispatch

import (
	"fmt"

	"voyager.com/comm/util"
)

// MessageLog keeps the rendering of every message sent to a table, prefixed with
// its audience ("all" or "player:<id>"). Operators read it through the REST API.
type MessageLog interface {
	Append(gameCode string, line string) error
	Load(gameCode string) ([]string, error)
	Remove(gameCode string) error
}

// maxLogLines bounds the log of one table; older lines are dropped first.
const maxLogLines = 2000

// NewMessageLog picks the implementation from PERSIST_METHOD.
func NewMessageLog() MessageLog {
	var persistMethod = util.Env.GetPersistMethod()
	if persistMethod == "redis" {
		var redisHost = util.Env.GetRedisHost()
		var redisPort = util.Env.GetRedisPort()
		var redisPW = util.Env.GetRedisPW()
		var redisDB = util.Env.GetRedisDB()
		return NewRedisMessageLog(fmt.Sprintf("%s:%d", redisHost, redisPort), redisPW, redisDB)
	}
	return NewMemoryMessageLog()
}
