package dispatch

import "github.com/kilianp07/civicdispatch/core/factory"

var transportRegistry = factory.NewRegistry[Transport]("transport")

// RegisterTransport adds a transport factory identified by name.
func RegisterTransport(name string, f factory.Factory[Transport]) error {
	return transportRegistry.Register(name, f)
}

// NewTransport creates the configured transport wrapped with the retry policy.
func NewTransport(cfg Config) (Transport, error) {
	t, err := transportRegistry.Create(cfg.Transport)
	if err != nil {
		return nil, err
	}
	return WithRetry(t, cfg.Retry.Policy()), nil
}

// TransportTypes lists the registered transport names.
func TransportTypes() []string { return transportRegistry.Types() }
