package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the paho disconnect grace, in ms.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2
)

// buildClientOptions maps one source's MQTT config onto paho options:
// broker URL (tcp or ssl), client id, optional credentials, clean
// session, and auto-reconnect with the source's backoff settings.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent broker session; subscriptions are replayed by the
	// client itself on reconnect.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// configureLWT registers the Last Will on the system status topic. The
// broker publishes it if the client drops without a graceful Close, so
// subscribers can distinguish a crash from a shutdown.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(systemStatusTopic,
		string(statusPayload(clientID, "offline", "unexpected_disconnect")),
		1, true)
}

// statusPayload builds the retained system-status message. Reason is
// omitted for online announcements.
func statusPayload(clientID, status, reason string) []byte {
	msg := struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	out, _ := json.Marshal(msg)
	return out
}
