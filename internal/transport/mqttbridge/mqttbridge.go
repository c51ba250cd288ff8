// Package mqttbridge feeds internal/observer's discovery engine from an
// MQTT broker instead of a direct bus connection: peers publish a
// retained About-style announcement on connect and a liveness ping
// response on request, the two signals internal/observer needs
// (HandleAnnouncement, HandleDestinationLost via a Pinger). It is
// grounded on internal/mqtt/publisher.go's autopaho connection-manager
// reconnect loop and internal/mqtt/subscriber.go's topic-routed message
// handler, adapted from that package's Home-Assistant sensor topics to
// a bus-discovery topic scheme.
package mqttbridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/observer"
)

// Config bundles the broker connection settings mqttbridge needs,
// following the flat-struct shape of config.MQTTConfig.
type Config struct {
	Broker     string
	Username   string
	Password   string
	ClientID   string
	TopicRoot  string // defaults to "corebus" when empty
	PingWindow time.Duration
}

func (c Config) topicRoot() string {
	if c.TopicRoot == "" {
		return "corebus"
	}
	return c.TopicRoot
}

func (c Config) announceTopic() string { return c.topicRoot() + "/announce/+" }
func (c Config) pingTopic() string     { return c.topicRoot() + "/ping" }
func (c Config) pongTopic(busName string) string {
	return c.topicRoot() + "/pong/" + busName
}

// announcementPayload is the wire format published on
// "<root>/announce/<busName>", a JSON rendering of busobject.Announcement
// (About's MsgArg bundle has no meaning outside the binary bus protocol,
// so the bridge uses plain JSON the way internal/mqtt's discovery
// payloads do).
type announcementPayload struct {
	BusName     string                      `json:"bus_name"`
	SessionPort uint16                      `json:"session_port"`
	Objects     busobject.ObjectDescription `json:"objects"`
}

// Bridge owns the MQTT connection and forwards announcement/ping
// traffic into an observer.Engine. It also implements
// observer.SessionJoiner and observer.PingGroup so the same connection
// manager can serve both roles without a second broker client.
type Bridge struct {
	cfg    Config
	engine *observer.Engine
	log    *slog.Logger

	cm *autopaho.ConnectionManager

	pongMu sync.Mutex
	pongs  map[string]chan struct{}
}

// New creates a Bridge bound to engine. Call Start to connect.
func New(cfg Config, engine *observer.Engine, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PingWindow <= 0 {
		cfg.PingWindow = 2 * time.Second
	}
	return &Bridge{
		cfg:    cfg,
		engine: engine,
		log:    log.With("component", "mqttbridge"),
		pongs:  make(map[string]chan struct{}),
	}
}

// Start connects to the broker, subscribes to the announcement and pong
// topics, and blocks until ctx is cancelled (the same contract as
// Publisher.Start).
func (b *Bridge) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.Broker)
	if err != nil {
		return fmt.Errorf("mqttbridge: parse broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: b.cfg.Username,
		ConnectPassword: []byte(b.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.log.Info("mqtt connected to broker", "broker", b.cfg.Broker)
			subCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, err := cm.Subscribe(subCtx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: b.cfg.announceTopic(), QoS: 1},
					{Topic: b.cfg.topicRoot() + "/pong/+", QoS: 0},
				},
			})
			if err != nil {
				b.log.Error("mqtt subscribe failed", "error", err)
			}
		},
		OnConnectError: func(err error) {
			b.log.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: b.cfg.ClientID,
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqttbridge: connect: %w", err)
	}
	b.cm = cm

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		b.handlePublish(pr.Packet.Topic, pr.Packet.Payload)
		return true, nil
	})

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.log.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	<-ctx.Done()
	return cm.Disconnect(context.Background())
}

func (b *Bridge) handlePublish(topic string, payload []byte) {
	root := b.cfg.topicRoot()
	switch {
	case strings.HasPrefix(topic, root+"/announce/"):
		b.handleAnnouncement(payload)
	case strings.HasPrefix(topic, root+"/pong/"):
		busName := strings.TrimPrefix(topic, root+"/pong/")
		b.handlePong(busName)
	}
}

func (b *Bridge) handleAnnouncement(payload []byte) {
	var ap announcementPayload
	if err := json.Unmarshal(payload, &ap); err != nil {
		b.log.Warn("mqttbridge: malformed announcement", "error", err)
		return
	}
	b.engine.HandleAnnouncement(busobject.Announcement{
		BusName:     ap.BusName,
		SessionPort: ap.SessionPort,
		Objects:     ap.Objects,
	})
}

func (b *Bridge) handlePong(busName string) {
	b.pongMu.Lock()
	ch, ok := b.pongs[busName]
	b.pongMu.Unlock()
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// JoinSession implements observer.SessionJoiner. Over MQTT there is no
// session-join handshake (every subscriber already receives every
// announcement), so it reports success immediately.
func (b *Bridge) JoinSession(busName string, port uint16, onJoined func(sessionID uint32, ok bool)) {
	onJoined(0, true)
}

// LeaveSession implements observer.SessionJoiner. No-op for the same
// reason as JoinSession.
func (b *Bridge) LeaveSession(busName string, sessionID uint32) {}

// Ping implements observer.PingGroup: publish a ping and wait
// cfg.PingWindow for each busName to answer on its pong topic,
// reporting the ones that didn't as dead.
func (b *Bridge) Ping(busNames []string) []string {
	if b.cm == nil || len(busNames) == 0 {
		return nil
	}

	waiters := make(map[string]chan struct{}, len(busNames))
	b.pongMu.Lock()
	for _, name := range busNames {
		ch := make(chan struct{}, 1)
		b.pongs[name] = ch
		waiters[name] = ch
	}
	b.pongMu.Unlock()
	defer func() {
		b.pongMu.Lock()
		for _, name := range busNames {
			delete(b.pongs, name)
		}
		b.pongMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.PingWindow)
	defer cancel()
	if _, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   b.cfg.pingTopic(),
		QoS:     0,
		Payload: []byte("ping"),
	}); err != nil {
		b.log.Warn("mqttbridge: ping publish failed", "error", err)
	}

	<-time.After(b.cfg.PingWindow)

	var dead []string
	for name, ch := range waiters {
		select {
		case <-ch:
		default:
			dead = append(dead, name)
		}
	}
	return dead
}
