// Package factory provides a small generic registry used to instantiate
// pluggable modules (transports, metrics sinks) from configuration. A module
// is described by a type string and a map of raw settings; factories decode
// the settings into typed structs with Decode.
//
//	reg := factory.NewRegistry[dispatch.Transport]("transport")
//	_ = reg.Register("simulated", func(conf map[string]any) (dispatch.Transport, error) {
//	    var c transport.SimulatedConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return transport.NewSimulated(c), nil
//	})
//	t, err := reg.Create(factory.ModuleConfig{Type: "simulated"})
package factory
