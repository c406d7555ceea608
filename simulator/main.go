// Command simulator plays the municipalities on the MQTT transport: it
// subscribes to every report topic and acknowledges, rejects or ignores each
// report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/kilianp07/civicdispatch/infra/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg Config
	cmd := &cobra.Command{
		Use:          "simulator",
		Short:        "Simulate municipalities answering MQTT reports",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	f.StringVar(&cfg.ClientID, "client-id", "authority-sim", "MQTT client id")
	f.StringVar(&cfg.TopicPrefix, "topic-prefix", "civic", "MQTT topic prefix")
	f.DurationVar(&cfg.AckLatency, "ack-latency", 0, "delay before each ack")
	f.Float64Var(&cfg.DropRate, "drop-rate", 0, "probability of never answering a report")
	f.Float64Var(&cfg.RejectRate, "reject-rate", 0, "probability of rejecting a report")
	f.StringVar(&cfg.Reason, "reason", "", "reason sent with random rejections")
	f.StringSliceVar(&cfg.Reject, "reject", nil, "target that always rejects, as id=reason; repeatable")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	f.BoolVar(&cfg.Verbose, "verbose", false, "log every report")
	return cmd
}

func strategyFor(cfg Config) (AckStrategy, error) {
	var s AckStrategy = AutoAck{}
	if cfg.DropRate > 0 || cfg.RejectRate > 0 {
		s = NewRandomAck(cfg.DropRate, cfg.RejectRate, cfg.Reason, cfg.Seed)
	}
	rejects, err := parseRejects(cfg.Reject)
	if err != nil {
		return nil, err
	}
	if len(rejects) > 0 {
		s = RejectTargets{Reasons: rejects, Next: s}
	}
	return s, nil
}

func run(ctx context.Context, cfg Config) error {
	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(os.Stdout, "authority-sim", level)

	strat, err := strategyFor(cfg)
	if err != nil {
		return err
	}
	cli, err := newMQTTClient(cfg.Broker, cfg.ClientID)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer cli.Disconnect(250)

	auth := NewAuthority(cfg.TopicPrefix, cfg.AckLatency, strat, pahoPublisher(cli), log)
	topic := cfg.TopicPrefix + "/+/reports"
	token := cli.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		auth.Handle(ctx, m.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Infof("answering reports on %s", topic)

	<-ctx.Done()
	cli.Unsubscribe(topic).WaitTimeout(time.Second)
	auth.Wait()
	st := auth.Stats()
	log.Infof("received %d reports, answered %d", st.Received, st.Answered)
	return nil
}
