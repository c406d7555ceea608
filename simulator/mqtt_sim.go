package main

import (
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

func pahoPublisher(cli paho.Client) Publisher {
	return func(topic string, payload []byte) error {
		token := cli.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return errors.New("ack publish timeout")
		}
		return token.Error()
	}
}
