package mirror

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Client is the part of the paho client the mirror uses.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// NewClient builds a paho client for broker. The client id gets a random
// suffix so several monitors can share a broker. The first connect fails
// fast when the broker is down; once connected the client reconnects on its
// own.
func NewClient(broker, clientID string) Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID + "-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetCleanSession(true)
	return mqtt.NewClient(opts)
}
