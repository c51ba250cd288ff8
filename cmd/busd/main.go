// Package main is the entry point for busd, a demo bus attachment
// process: it wires a local endpoint, a sample announced object, and
// the discovery engine together over a loopback transport so the whole
// stack can be exercised without a real network peer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allbus/corebus/internal/buildinfo"
	"github.com/allbus/corebus/internal/busconfig"
	"github.com/allbus/corebus/internal/buslog"
	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/dispatch"
	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/introspect"
	"github.com/allbus/corebus/internal/observer"
	"github.com/allbus/corebus/internal/security"
	"github.com/allbus/corebus/internal/transport"
	"github.com/allbus/corebus/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	buslog.Init(slog.LevelInfo)
	logger := buslog.For("main")

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "serve":
		runServe(logger, *configPath)
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("busd - message bus attachment daemon")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Start a bus attachment")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting busd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg := busconfig.Default()
	if path, err := busconfig.FindConfig(configPath); err == nil {
		loaded, err := busconfig.Load(path)
		if err != nil {
			logger.Error("failed to load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		logger.Info("config loaded", "path", path)
	} else {
		logger.Warn("no config file found, using defaults", "error", err)
	}

	if level, err := buslog.ParseLevel(cfg.LogLevel); err == nil {
		buslog.Init(level)
		logger = buslog.For("main")
	}

	registry := busobject.NewRegistry()
	sampleObj, err := newSampleObject()
	if err != nil {
		logger.Error("failed to build sample object", "error", err)
		os.Exit(1)
	}
	if err := registry.Register(sampleObj); err != nil {
		logger.Error("failed to register sample object", "error", err)
		os.Exit(1)
	}

	busName := ":busd." + buildinfo.Version
	keyring := security.New(buslog.For("security"))

	peerA, peerB := transport.NewLoopbackPair()

	endpoint := dispatch.New(dispatch.Config{
		Logger:         buslog.For("dispatch"),
		Sender:         peerSender{peerA},
		Security:       keyring,
		Introspector:   &introspect.Generator{Registry: registry},
		Registry:       registry,
		Serials:        wire.NewSerialAllocator(),
		Workers:        cfg.Dispatcher.Workers,
		DefaultTimeout: cfg.Dispatcher.DefaultTimeout,
	})
	endpoint.Start()
	defer endpoint.Stop()

	peerEndpoint := dispatch.New(dispatch.Config{
		Logger:   buslog.For("dispatch.peer"),
		Sender:   peerSender{peerB},
		Security: keyring,
		Registry: busobject.NewRegistry(),
		Serials:  wire.NewSerialAllocator(),
		Workers:  1,
	})
	peerEndpoint.Start()
	defer peerEndpoint.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := transport.Pump(ctx, peerB, peerEndpoint); err != nil {
			logger.Debug("loopback pump (peerB) stopped", "error", err)
		}
	}()
	go func() {
		if err := transport.Pump(ctx, peerA, endpoint); err != nil {
			logger.Debug("loopback pump (peerA) stopped", "error", err)
		}
	}()

	announcer := busobject.NewAboutAnnouncer(registry, busName, busobject.AboutData{
		Fields: map[string]string{"AppName": "busd"},
	})
	_ = announcer.Announce(0)

	engine := observer.New(noopJoiner{}, noopDiscovery{})
	engine.Start()
	defer engine.Stop()
	pinger := observer.NewPinger(engine, noopPingGroup{}, cfg.Observer.PingInterval)
	pinger.Start()
	defer pinger.Stop()

	logger.Info("busd attachment ready", "bus_name", busName, "object", sampleObj.Path())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")
}

// newSampleObject builds the one demo bus object this process exposes,
// implementing a minimal "com.example.Greeter" interface with a single
// Greet method, so `busd serve` has something to introspect and call.
func newSampleObject() (*busobject.Object, error) {
	obj, err := busobject.NewObject("/com/example/Greeter")
	if err != nil {
		return nil, err
	}

	d, err := ifc.NewDescription("com.example.Greeter", ifc.SecurityOff)
	if err != nil {
		return nil, err
	}
	if err := d.AddMember(ifc.Member{
		Kind:   ifc.MemberMethod,
		Name:   "Greet",
		InSig:  wire.Signature("s"),
		OutSig: wire.Signature("s"),
	}); err != nil {
		return nil, err
	}
	d.Activate()

	if err := obj.AddInterface(d, true); err != nil {
		return nil, err
	}
	if err := obj.AddMethodHandler("com.example.Greeter", "Greet", greetHandler); err != nil {
		return nil, err
	}
	return obj, nil
}

func greetHandler(ctx *busobject.CallContext, msg *wire.Message) {
	if err := wire.UnmarshalArgs(msg, wire.Signature("s")); err != nil {
		_ = ctx.Error("org.freedesktop.DBus.Error.InvalidArgs", err.Error())
		return
	}
	name := "world"
	if len(msg.Args) == 1 {
		name = msg.Args[0].Str
	}
	_ = ctx.Reply([]wire.Arg{{Type: wire.TypeString, Str: "Hello, " + name + "!"}})
}

// peerSender adapts a transport.Link to dispatch.Sender.
type peerSender struct {
	link *transport.Loopback
}

func (s peerSender) Send(msg *wire.Message) error { return s.link.SendMessage(msg) }

// noopJoiner/noopDiscovery/noopPingGroup are stand-ins for a real
// transport's session-join and WhoImplements backing (e.g.
// mqttbridge.Bridge) when busd runs standalone with nothing to discover.
type noopJoiner struct{}

func (noopJoiner) JoinSession(busName string, port uint16, onJoined func(sessionID uint32, ok bool)) {
	onJoined(0, true)
}
func (noopJoiner) LeaveSession(busName string, sessionID uint32) {}

type noopDiscovery struct{}

func (noopDiscovery) WhoImplements(interfaces []string)       {}
func (noopDiscovery) CancelWhoImplements(interfaces []string) {}

type noopPingGroup struct{}

func (noopPingGroup) Ping(busNames []string) []string { return nil }
