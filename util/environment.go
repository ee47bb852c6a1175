package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var environmentLogger = log.With().Str("logger_name", "util::environment").Logger()

type commEnvironment struct {
	LogLevel               string
	PersistMethod          string
	RedisHost              string
	RedisPort              string
	RedisPW                string
	RedisDB                string
	PlayTimeout            string
	PingTimeout            string
	Transport              string
	NatsURL                string
	ListenAddr             string
	DebugConnectivityCheck string
}

// Env is a helper object for accessing environment variables.
var Env = &commEnvironment{
	LogLevel:               "LOG_LEVEL",
	PersistMethod:          "PERSIST_METHOD",
	RedisHost:              "REDIS_HOST",
	RedisPort:              "REDIS_PORT",
	RedisPW:                "REDIS_PW",
	RedisDB:                "REDIS_DB",
	PlayTimeout:            "PLAY_TIMEOUT",
	PingTimeout:            "PING_TIMEOUT",
	Transport:              "TRANSPORT",
	NatsURL:                "NATS_URL",
	ListenAddr:             "LISTEN_ADDR",
	DebugConnectivityCheck: "DEBUG_CONNECTIVITY_CHECK",
}

func (g *commEnvironment) GetLogLevel() string {
	v := os.Getenv(g.LogLevel)
	if v == "" {
		return "info"
	}
	return v
}

// GetPersistMethod returns "memory" or "redis".
func (g *commEnvironment) GetPersistMethod() string {
	method := os.Getenv(g.PersistMethod)
	if method == "" {
		return "memory"
	}
	return method
}

func (g *commEnvironment) GetRedisHost() string {
	host := os.Getenv(g.RedisHost)
	if host == "" {
		msg := fmt.Sprintf("%s is not defined", g.RedisHost)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return host
}

func (g *commEnvironment) GetRedisPort() int {
	portStr := os.Getenv(g.RedisPort)
	if portStr == "" {
		return 6379
	}
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		msg := fmt.Sprintf("Invalid Redis port %s", portStr)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return portNum
}

func (g *commEnvironment) GetRedisPW() string {
	pw := os.Getenv(g.RedisPW)
	return pw
}

func (g *commEnvironment) GetRedisDB() int {
	dbStr := os.Getenv(g.RedisDB)
	if dbStr == "" {
		return 0
	}
	dbNum, err := strconv.Atoi(dbStr)
	if err != nil {
		msg := fmt.Sprintf("Invalid Redis db %s", dbStr)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return dbNum
}

func (g *commEnvironment) IsPlayTimeoutSet() bool {
	return os.Getenv(g.PlayTimeout) != ""
}

func (g *commEnvironment) GetPlayTimeout() int {
	s := os.Getenv(g.PlayTimeout)
	if s == "" {
		// 1 minute + a few seconds for slow network
		return 62
	}
	timeoutSec, err := strconv.Atoi(s)
	if err != nil || timeoutSec <= 0 {
		msg := fmt.Sprintf("Invalid integer [%s] for play timeout value", s)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return timeoutSec
}

func (g *commEnvironment) GetPingTimeout() int {
	s := os.Getenv(g.PingTimeout)
	if s == "" {
		return 3
	}
	timeoutSec, err := strconv.Atoi(s)
	if err != nil || timeoutSec <= 0 {
		msg := fmt.Sprintf("Invalid integer [%s] for ping timeout value", s)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return timeoutSec
}

// GetTransport returns "ws" or "nats".
func (g *commEnvironment) GetTransport() string {
	v := strings.ToLower(os.Getenv(g.Transport))
	if v == "" {
		return "ws"
	}
	if v != "ws" && v != "nats" {
		msg := fmt.Sprintf("Invalid transport [%s]", v)
		environmentLogger.Error().Msg(msg)
		panic(msg)
	}
	return v
}

func (g *commEnvironment) GetNatsURL() string {
	v := os.Getenv(g.NatsURL)
	if v == "" {
		return "nats://127.0.0.1:4222"
	}
	return v
}

func (g *commEnvironment) GetListenAddr() string {
	v := os.Getenv(g.ListenAddr)
	if v == "" {
		return ":8080"
	}
	return v
}

func (g *commEnvironment) GetDebugConnectivityCheck() string {
	v := os.Getenv(g.DebugConnectivityCheck)
	if v == "" {
		return "false"
	}
	return v
}

func (g *commEnvironment) ShouldDebugConnectivityCheck() bool {
	return g.GetDebugConnectivityCheck() == "1" || strings.ToLower(g.GetDebugConnectivityCheck()) == "true"
}
