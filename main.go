package main

import (
	"flag"
	"fmt"
	"os"

	natsgo "github.com/nats-io/nats.go"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"voyager.com/comm/dispatch"
	"voyager.com/comm/logging"
	"voyager.com/comm/message"
	commnats "voyager.com/comm/nats"
	"voyager.com/comm/rest"
	"voyager.com/comm/session"
	"voyager.com/comm/table"
	"voyager.com/comm/util"
)

var configFile *string
var mainLogger = logging.GetZeroLogger("main::main", nil)

func init() {
	configFile = flag.String("config", "comm.yaml", "YAML file with the communication settings")
}

func main() {
	err := run()
	if err != nil {
		mainLogger.Error().Msg(err.Error())
		os.Exit(1)
	}
}

func run() error {
	logLevel := logging.ParseLevel(util.Env.GetLogLevel())
	fmt.Printf("Setting log level to %s\n", logLevel)
	zerolog.SetGlobalLevel(logLevel)
	flag.Parse()

	cfg, err := util.ParseConfig(*configFile)
	if err != nil {
		return errors.Wrap(err, "Error while parsing config")
	}
	codec, err := message.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}
	tableCfg := table.Config{
		ActionTimeout:    cfg.ActionTimeout(),
		SettledCacheSize: cfg.SettledCacheSize,
		Codec:            codec,
		MessageLog:       dispatch.NewMessageLog(),
	}
	mainLogger.Info().Str(logging.CodecKey, codec.Name()).Msgf("Action timeout: %s", tableCfg.ActionTimeout)

	switch util.Env.GetTransport() {
	case "nats":
		return runWithNats(cfg, tableCfg)
	default:
		return runWithWebsocket(cfg, tableCfg)
	}
}

func runWithWebsocket(cfg util.Config, tableCfg table.Config) error {
	mainLogger.Info().Msg("Running the server with websocket sessions")
	hubCfg := session.Config{
		Binary:            tableCfg.Codec.Name() == message.ProtoCodecName,
		WriteTimeout:      cfg.WriteTimeout(),
		InboundRatePerSec: cfg.InboundRatePerSec,
		InboundBurst:      cfg.InboundBurst,
	}
	hubs := cmap.New()
	manager := table.NewManager(func(gameCode string) (dispatch.Transport, error) {
		return session.NewHub(gameCode, hubCfg), nil
	}, tableCfg)
	manager.OnTableCreated(func(t *table.Table, transport dispatch.Transport) {
		hubs.Set(t.GameCode(), transport.(*session.Hub))
	})
	manager.OnTableEnded(func(gameCode string) {
		if hub, ok := hubs.Pop(gameCode); ok {
			hub.(*session.Hub).Close()
		}
	})
	defer manager.CloseAll()

	hubFor := func(gameCode string) (*session.Hub, bool) {
		hub, ok := hubs.Get(gameCode)
		if !ok {
			return nil, false
		}
		return hub.(*session.Hub), true
	}
	return rest.RunRestServer(util.Env.GetListenAddr(), manager, hubFor)
}

func runWithNats(cfg util.Config, tableCfg table.Config) error {
	natsURL := util.Env.GetNatsURL()
	mainLogger.Info().Msgf("Running the server with NATS. NATS URL: %s", natsURL)
	nc, err := natsgo.Connect(natsURL)
	if err != nil {
		return errors.Wrapf(err, "Error connecting to NATS server %s", natsURL)
	}
	defer nc.Close()

	type natsTable struct {
		listener *commnats.Listener
		check    *commnats.NetworkCheck
	}
	natsTables := cmap.New()

	manager := table.NewManager(func(gameCode string) (dispatch.Transport, error) {
		return commnats.NewTransport(nc, gameCode), nil
	}, tableCfg)
	manager.OnTableCreated(func(t *table.Table, _ dispatch.Transport) {
		listener, err := commnats.NewListener(nc, t.GameCode(), t)
		if err != nil {
			mainLogger.Error().Err(err).Str(logging.GameCodeKey, t.GameCode()).Msg("Unable to listen for players")
			return
		}
		check, err := commnats.NewNetworkCheck(nc, t.GameCode(), cfg.PingInterval(), t)
		if err != nil {
			listener.Close()
			mainLogger.Error().Err(err).Str(logging.GameCodeKey, t.GameCode()).Msg("Unable to start network check")
			return
		}
		check.SetPlayerIDs(t.Players())
		t.OnPlayersChanged(check.SetPlayerIDs)
		check.OnRestored(t.PlayerRestored)
		check.Run()
		natsTables.Set(t.GameCode(), &natsTable{listener: listener, check: check})
	})
	manager.OnTableEnded(func(gameCode string) {
		if v, ok := natsTables.Pop(gameCode); ok {
			nt := v.(*natsTable)
			nt.check.Destroy()
			nt.listener.Close()
		}
	})
	defer manager.CloseAll()

	return rest.RunRestServer(util.Env.GetListenAddr(), manager, nil)
}
