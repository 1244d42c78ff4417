package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/option"
)

type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Kind                string
	WebhookURL          string
	WebhookToken        string
	FirebaseCredentials string
	AMQPURL             string
	AMQPQueue           string
}

// NewProvider builds the push transport named by cfg.Kind. Unknown kinds and webhook
// without a URL fall back to logging.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "stub", "log":
		return logProvider{}, nil
	case "noop":
		return noopProvider{}, nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return logProvider{}, nil
		}
		return newWebhookProvider(cfg.WebhookURL, cfg.WebhookToken), nil
	case "fcm", "firebase":
		return newFCMProvider(ctx, cfg.FirebaseCredentials)
	case "amqp", "rabbitmq":
		return newAMQPProvider(cfg.AMQPURL, cfg.AMQPQueue)
	default:
		if strings.HasPrefix(cfg.Kind, "http://") || strings.HasPrefix(cfg.Kind, "https://") {
			return newWebhookProvider(cfg.Kind, cfg.WebhookToken), nil
		}
		return logProvider{}, nil
	}
}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, msg Message) error {
	log.Printf("send push entry_id=%s type=%s title=%q", msg.Data["entry_id"], msg.Data["type"], msg.Title)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, msg Message) error {
	return nil
}

type webhookProvider struct {
	url    string
	token  string
	client *http.Client
}

func newWebhookProvider(url, token string) webhookProvider {
	return webhookProvider{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p webhookProvider) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}

type fcmProvider struct {
	client *messaging.Client
}

func newFCMProvider(ctx context.Context, credentials string) (*fcmProvider, error) {
	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &fcmProvider{client: client}, nil
}

func (p *fcmProvider) Send(ctx context.Context, msg Message) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	return err
}

// amqpProvider hands messages to a durable queue for an external push dispatcher.
type amqpProvider struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func newAMQPProvider(url, queue string) (*amqpProvider, error) {
	if url == "" {
		return nil, errors.New("AMQP_URL is required for the amqp push provider")
	}
	if queue == "" {
		queue = "waitlist.push"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return &amqpProvider{conn: conn, channel: channel, queue: queue}, nil
}

func (p *amqpProvider) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *amqpProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.channel.Close()
	return p.conn.Close()
}
