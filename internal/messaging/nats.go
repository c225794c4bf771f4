package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// NATSClient handles NATS messaging operations
type NATSClient struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	encoder *nats.EncodedConn
	logger  *logrus.Entry
	cfg     *config.NATSConfig

	// Subscriptions
	subs   map[string]*nats.Subscription
	subsMu sync.RWMutex
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// Create encoded connection for JSON
	encoder, err := nats.NewEncodedConn(conn, nats.JSON_ENCODER)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create encoded connection: %w", err)
	}

	nc := &NATSClient{
		conn:    conn,
		js:      js,
		encoder: encoder,
		logger:  logger.WithField("component", "nats"),
		cfg:     cfg,
		subs:    make(map[string]*nats.Subscription),
	}

	// Initialize streams
	if err := nc.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return nc, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.subsMu.Lock()
	for _, sub := range nc.subs {
		sub.Unsubscribe()
	}
	nc.subs = make(map[string]*nats.Subscription)
	nc.subsMu.Unlock()

	nc.encoder.Close()
	nc.conn.Close()
	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// initializeStreams creates JetStream streams
func (nc *NATSClient) initializeStreams() error {
	// Notifications stream so alerts survive a brief consumer outage
	_, err := nc.js.AddStream(&nats.StreamConfig{
		Name:     "NOTIFICATIONS",
		Subjects: []string{"notifications.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
		MaxMsgs:  100000,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create NOTIFICATIONS stream: %w", err)
	}

	// Price stream for market quote updates
	_, err = nc.js.AddStream(&nats.StreamConfig{
		Name:     "PRICES",
		Subjects: []string{"prices.>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   24 * time.Hour,
		MaxMsgs:  1000000,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create PRICES stream: %w", err)
	}

	// System stream for health and gateway errors
	_, err = nc.js.AddStream(&nats.StreamConfig{
		Name:     "SYSTEM",
		Subjects: []string{"system.>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   1 * time.Hour,
		MaxMsgs:  10000,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create SYSTEM stream: %w", err)
	}

	return nil
}

// Notification operations

// PublishNotification publishes a notification for a user
func (nc *NATSClient) PublishNotification(notification *models.Notification) error {
	subject := fmt.Sprintf("notifications.%s", notification.UserID)
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = nc.js.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// SubscribeNotifications subscribes to notifications across all users
func (nc *NATSClient) SubscribeNotifications(handler func(*models.Notification)) error {
	subject := "notifications.>"

	sub, err := nc.encoder.Subscribe(subject, func(notification *models.Notification) {
		handler(notification)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	nc.subsMu.Lock()
	nc.subs[subject] = sub
	nc.subsMu.Unlock()

	return nil
}

// Price operations

// PublishQuote publishes a market quote update
func (nc *NATSClient) PublishQuote(quote *models.MarketQuote) error {
	subject := fmt.Sprintf("prices.%s", quote.Symbol)
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	// Use PublishAsync for non-blocking publish with timeout
	future, err := nc.js.PublishAsync(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish quote: %w", err)
	}

	select {
	case <-future.Ok():
		return nil
	case err := <-future.Err():
		return fmt.Errorf("failed to publish quote: %w", err)
	case <-time.After(2 * time.Second):
		return fmt.Errorf("publish timeout for subject %s", subject)
	}
}

// SubscribeQuotes subscribes to market quote updates
func (nc *NATSClient) SubscribeQuotes(handler func(*models.MarketQuote), symbols ...string) error {
	if len(symbols) > 0 {
		for _, symbol := range symbols {
			subj := fmt.Sprintf("prices.%s", symbol)
			sub, err := nc.encoder.Subscribe(subj, func(quote *models.MarketQuote) {
				handler(quote)
			})
			if err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", subj, err)
			}

			nc.subsMu.Lock()
			nc.subs[subj] = sub
			nc.subsMu.Unlock()
		}
		return nil
	}

	subject := "prices.>"
	sub, err := nc.encoder.Subscribe(subject, func(quote *models.MarketQuote) {
		handler(quote)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to quotes: %w", err)
	}

	nc.subsMu.Lock()
	nc.subs[subject] = sub
	nc.subsMu.Unlock()

	return nil
}

// System operations

// PublishGatewayError publishes an upstream provider failure
func (nc *NATSClient) PublishGatewayError(provider string, err error) error {
	subject := "system.errors"

	data, marshalErr := json.Marshal(map[string]interface{}{
		"provider":  provider,
		"error":     err.Error(),
		"timestamp": time.Now().Unix(),
	})
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal error data: %w", marshalErr)
	}

	_, pubErr := nc.js.Publish(subject, data)
	if pubErr != nil {
		return fmt.Errorf("failed to publish error: %w", pubErr)
	}
	return nil
}
