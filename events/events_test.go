package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ecoleta/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	sent         []published
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPointCreatedPublishesJSON(t *testing.T) {
	client := &fakeClient{}
	pub := newMQTTPublisher(client, "ecoleta/points")

	point := models.Point{ID: 5, Name: "Coop X", UF: "SP", City: "Osasco", Latitude: -23.5, Longitude: -46.6, Items: []int64{1, 3}}
	require.NoError(t, pub.PointCreated(context.Background(), point))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "ecoleta/points/created", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var event PointCreated
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &event))
	assert.Equal(t, "point.created", event.Event)
	assert.Equal(t, int64(5), event.PointID)
	assert.Equal(t, []int64{1, 3}, event.Items)

	pub.Close()
	assert.True(t, client.disconnected)
}

func TestPointCreatedReturnsBrokerError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	pub := newMQTTPublisher(client, "ecoleta/points")

	err := pub.PointCreated(context.Background(), models.Point{ID: 1})
	assert.ErrorContains(t, err, "not connected")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PointCreated(context.Background(), models.Point{}))
	p.Close()
}
