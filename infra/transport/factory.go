package transport

import (
	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/factory"
	"github.com/kilianp07/civicdispatch/infra/mqtt"
)

func init() {
	_ = dispatch.RegisterTransport("simulated", func(conf map[string]any) (dispatch.Transport, error) {
		var c SimulatedConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		return NewSimulated(c), nil
	})
	_ = dispatch.RegisterTransport("webhook", func(conf map[string]any) (dispatch.Transport, error) {
		var c WebhookConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewWebhook(c)
	})
	_ = dispatch.RegisterTransport("mqtt", func(conf map[string]any) (dispatch.Transport, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return mqtt.NewTransport(c)
	})
}
