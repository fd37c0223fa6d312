package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/waterdelta/internal/apperr"
	"github.com/jgoulah/waterdelta/internal/config"
	"github.com/jgoulah/waterdelta/pkg/models"
)

const (
	mqttClientID   = "waterdelta"
	estimateSuffix = "estimate"
)

// Publisher sends estimates to Home Assistant over MQTT, the REST API, or both
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
}

// New creates a new publisher. Only the enabled transports are set up; the
// MQTT broker is connected here.
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig, topicPrefix string) (*Publisher, error) {
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, &apperr.ConfigError{Field: "home_assistant.url", Message: "is required when enabled"}
		}
		if haCfg.Token == "" {
			return nil, &apperr.ConfigError{Field: "home_assistant.token", Message: "is required when enabled"}
		}
		if haCfg.EntityID == "" {
			return nil, &apperr.ConfigError{Field: "home_assistant.entity_id", Message: "is required when enabled"}
		}
	}

	var client mqtt.Client
	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, &apperr.ConfigError{Field: "mqtt.broker", Message: "is required when enabled"}
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(brokerURL(mqttCfg.Broker))
		opts.SetClientID(mqttClientID)
		opts.SetAutoReconnect(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, &apperr.TransportError{URL: brokerURL(mqttCfg.Broker), Err: token.Error()}
		}
	}

	return &Publisher{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// brokerURL accepts either host:port or a full tcp://, ssl:// or ws:// URL
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return fmt.Sprintf("tcp://%s", broker)
}

// Enabled reports whether any transport is configured
func (p *Publisher) Enabled() bool {
	return p.client != nil || p.haConfig.Enabled
}

// Topic returns the retained MQTT topic estimates are published on
func (p *Publisher) Topic() string {
	return p.topicPrefix + "/" + estimateSuffix
}

// Publish sends an estimate to every enabled transport
func (p *Publisher) Publish(ctx context.Context, e models.Estimate) error {
	if !p.Enabled() {
		return &apperr.ConfigError{Field: "mqtt.enabled", Message: "no publishing transport is enabled (mqtt or home_assistant)"}
	}

	if p.client != nil {
		if err := p.publishMQTT(e); err != nil {
			return err
		}
	}
	if p.haConfig.Enabled {
		if err := p.publishState(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishMQTT(e models.Estimate) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding estimate: %w", err)
	}

	token := p.client.Publish(p.Topic(), 1, true, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return &apperr.TimeoutError{URL: p.Topic(), Err: fmt.Errorf("publish not acknowledged")}
	}
	if err := token.Error(); err != nil {
		return &apperr.TransportError{URL: p.Topic(), Err: err}
	}
	return nil
}

// HAState is the body of a Home Assistant POST /api/states/<entity_id> call
type HAState struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// BuildState renders an estimate as a Home Assistant sensor state. The state is
// the additional cost; the other figures ride along as attributes.
func BuildState(e models.Estimate) HAState {
	return HAState{
		State: fmt.Sprintf("%.2f", e.AdditionalCost),
		Attributes: map[string]any{
			"friendly_name":       "Water cost delta",
			"unit_of_measurement": "USD",
			"device_class":        "monetary",
			"bill_date":           e.BillDate.Format("2006-01-02"),
			"current_usage":       e.CurrentUsage,
			"current_amount":      e.CurrentAmount,
			"average_baseline":    e.AverageBaseline,
			"usage_difference":    e.Difference,
			"price_per_unit":      e.PricePerUnit,
			"baseline_years":      e.Baselines,
			"strategy":            e.Strategy,
			"estimate_id":         e.ID,
		},
	}
}

func (p *Publisher) publishState(ctx context.Context, e models.Estimate) error {
	apiURL := fmt.Sprintf("%s/api/states/%s", strings.TrimSuffix(p.haConfig.URL, "/"), p.haConfig.EntityID)

	body, err := json.Marshal(BuildState(e))
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperr.FromRequest(apiURL, err)
	}
	defer resp.Body.Close()

	// 201 on first write of an entity, 200 afterwards
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apperr.ProtocolError{
			URL:        apiURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Home Assistant rejected state: %s", strings.TrimSpace(string(respBody))),
		}
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
