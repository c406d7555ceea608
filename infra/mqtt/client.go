package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/monitoring"
	"github.com/kilianp07/civicdispatch/infra/logger"
)

// ErrAckTimeout is returned when a target does not acknowledge a report in time.
var ErrAckTimeout = errors.New("mqtt ack timeout")

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	// TopicPrefix roots report and ack topics: <prefix>/<target>/reports.
	TopicPrefix string `json:"topic_prefix"`
	// QoS per message kind: "report" and "ack".
	QoS          map[string]byte `json:"qos"`
	AckTimeoutMS int             `json:"ack_timeout_ms"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	TLSConfig    *tls.Config     `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "civicdispatch-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "civic"
	}
	if c.AckTimeoutMS == 0 {
		c.AckTimeoutMS = 10000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if c.AckTimeoutMS < 0 {
		return fmt.Errorf("ack_timeout_ms must be >= 0")
	}
	return nil
}

// ReportTopic is the topic a target receives reports on.
func (c Config) ReportTopic(targetID string) string {
	return fmt.Sprintf("%s/%s/reports", c.TopicPrefix, targetID)
}

// AckTopic is the wildcard topic acknowledgements arrive on.
func (c Config) AckTopic() string {
	return c.TopicPrefix + "/+/acks"
}

// ackTarget extracts the target id from an ack topic.
func (c Config) ackTarget(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, c.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/acks")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Ack is the acknowledgement a target publishes on <prefix>/<target>/acks.
type Ack struct {
	CorrelationID string `json:"correlation_id"`
	Accepted      bool   `json:"accepted"`
	Reason        string `json:"reason,omitempty"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Transport publishes each report to the target's topic and waits for the
// target to acknowledge it. A rejected report is a permanent failure; a
// missing ack may be retried.
type Transport struct {
	cli        pahoClient
	cfg        Config
	ackTimeout time.Duration
	logger     logger.Logger

	mu      sync.Mutex
	pending map[string]pendingAck
}

// pendingAck waits for the ack of one report sent to target.
type pendingAck struct {
	target string
	ch     chan Ack
}

// NewTransport connects to the broker and subscribes to the ack topic.
func NewTransport(cfg Config) (*Transport, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_transport")
	t := &Transport{
		cfg:        cfg,
		ackTimeout: time.Duration(cfg.AckTimeoutMS) * time.Millisecond,
		logger:     log,
		pending:    make(map[string]pendingAck),
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.AckTopic(), cfg.QoS["ack"], t.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	t.cli = c
	return t, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (t *Transport) onAck(_ paho.Client, msg paho.Message) {
	var a Ack
	if err := json.Unmarshal(msg.Payload(), &a); err != nil {
		t.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	target, ok := t.cfg.ackTarget(msg.Topic())
	if !ok {
		t.logger.Warnf("ignoring ack on unexpected topic %q", msg.Topic())
		return
	}
	t.mu.Lock()
	p, ok := t.pending[a.CorrelationID]
	t.mu.Unlock()
	if !ok {
		return
	}
	if p.target != target {
		t.logger.Warnf("ignoring ack for %s from %s: report was sent to %s", a.CorrelationID, target, p.target)
		return
	}
	select {
	case p.ch <- a:
	default:
	}
}

// Deliver publishes the report and blocks until it is acknowledged, the ack
// timeout expires or ctx is done.
func (t *Transport) Deliver(ctx context.Context, d dispatch.Delivery) error {
	id := uuid.NewString()
	payload, err := json.Marshal(dispatch.NewPayload(d, id, time.Now()))
	if err != nil {
		return dispatch.Permanent(err)
	}
	ch := make(chan Ack, 1)
	t.mu.Lock()
	t.pending[id] = pendingAck{target: d.Target.ID, ch: ch}
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	topic := t.cfg.ReportTopic(d.Target.ID)
	token := t.cli.Publish(topic, t.cfg.QoS["report"], false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		monitoring.CaptureException(err, map[string]string{"target_id": d.Target.ID, "module": "mqtt"})
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	t.logger.Debugf("sent report %s to %s", id, topic)

	timer := time.NewTimer(t.ackTimeout)
	defer timer.Stop()
	select {
	case a := <-ch:
		if !a.Accepted {
			reason := strings.TrimSpace(a.Reason)
			if reason == "" {
				reason = "report rejected"
			}
			return dispatch.Permanent(errors.New(reason))
		}
		return nil
	case <-timer.C:
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close gracefully closes the MQTT connection.
func (t *Transport) Close() error {
	if t.cli != nil && t.cli.IsConnected() {
		t.cli.Disconnect(250)
	}
	return nil
}
