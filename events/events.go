// Package events publishes point lifecycle notifications over MQTT.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ecoleta/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// PointCreated is the payload sent after a point is stored
type PointCreated struct {
	Event     string    `json:"event"`
	PointID   int64     `json:"point_id"`
	Name      string    `json:"name"`
	UF        string    `json:"uf"`
	City      string    `json:"city"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Items     []int64   `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher is notified of newly created points.
type Publisher interface {
	PointCreated(ctx context.Context, p models.Point) error
	Close()
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) PointCreated(context.Context, models.Point) error { return nil }
func (Nop) Close()                                          {}

// mqttClient is the subset of mqtt.Client the publisher needs
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTPublisher struct {
	client mqttClient
	topic  string
}

// DialMQTT connects to broker and returns a publisher writing to
// "<topic>/created".
func DialMQTT(broker, topic string) (*MQTTPublisher, error) {
	clientID := fmt.Sprintf("ecoleta-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts = opts.SetAutoReconnect(true).SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	slog.Info("connected to MQTT broker", "broker", broker, "client_id", clientID)
	return newMQTTPublisher(client, topic), nil
}

func newMQTTPublisher(client mqttClient, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic}
}

func (p *MQTTPublisher) PointCreated(ctx context.Context, point models.Point) error {
	payload, err := json.Marshal(PointCreated{
		Event:     "point.created",
		PointID:   point.ID,
		Name:      point.Name,
		UF:        point.UF,
		City:      point.City,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
		Items:     point.Items,
		CreatedAt: point.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode point event: %w", err)
	}

	token := p.client.Publish(p.topic+"/created", 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish point %d: timed out", point.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish point %d: %w", point.ID, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
