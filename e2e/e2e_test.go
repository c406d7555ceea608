//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/civicdispatch/app"
	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/registry"
	"github.com/kilianp07/civicdispatch/infra/metrics"
	"github.com/kilianp07/civicdispatch/infra/mqtt"
	"github.com/kilianp07/civicdispatch/internal/eventbus"
)

const (
	influxOrg    = "civic"
	influxBucket = "dispatch"
	influxToken  = "e2e-admin-token"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
}

// startInflux starts an InfluxDB 2.7 container initialised with the test org,
// bucket and admin token.
func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(90 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "8086")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto starts a broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	conf := "listener 1883\nallow_anonymous true\npersistence false\nlog_dest stdout\n"
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o644))

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if err := waitForBroker(broker, 10*time.Second); err != nil {
		t.Skipf("mosquitto not ready at %s: %v", broker, err)
	}
	return broker
}

func waitForBroker(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if lastErr = token.Error(); lastErr == nil {
			cli.Disconnect(100)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return lastErr
}

// startAuthority plays every municipality: it acknowledges each report,
// rejecting those addressed to the targets in reject.
func startAuthority(t *testing.T, cfg mqtt.Config, reject map[string]string) {
	t.Helper()
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID("authority"))
	token := cli.Connect()
	token.Wait()
	require.NoError(t, token.Error())
	t.Cleanup(func() { cli.Disconnect(100) })

	reports := cfg.TopicPrefix + "/+/reports"
	token = cli.Subscribe(reports, 1, func(c paho.Client, m paho.Message) {
		var p dispatch.Payload
		if err := json.Unmarshal(m.Payload(), &p); err != nil {
			return
		}
		reason, rejected := reject[p.Target.ID]
		ack, _ := json.Marshal(mqtt.Ack{CorrelationID: p.CorrelationID, Accepted: !rejected, Reason: reason})
		c.Publish(fmt.Sprintf("%s/%s/acks", cfg.TopicPrefix, p.Target.ID), 1, false, ack)
	})
	token.Wait()
	require.NoError(t, token.Error())
}

func TestDispatchRoundOverMQTTWithInfluxMetrics(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	broker := startMosquitto(ctx, t)
	influxURL := startInflux(ctx, t)

	probe := newInfluxProbe(influxURL, influxOrg, influxBucket, influxToken)
	defer probe.Close()
	require.NoError(t, probe.ensureBucket(ctx))

	mcfg := mqtt.Config{Broker: broker, ClientID: "civicdispatch-e2e", AckTimeoutMS: 5000}
	mcfg.SetDefaults()
	startAuthority(t, mcfg, map[string]string{"pune": "outside ward boundaries"})

	tr, err := mqtt.NewTransport(mcfg)
	require.NoError(t, err)

	sink := metrics.NewInfluxSink(metrics.InfluxConfig{URL: influxURL, Token: influxToken, Org: influxOrg, Bucket: influxBucket})
	defer sink.Close()
	bus := eventbus.New()
	collectorCtx, stopCollector := context.WithCancel(ctx)
	collected := metrics.StartEventCollector(collectorCtx, bus, sink, nil)

	svc, err := app.NewWithDeps(app.Deps{
		Registry:  registry.Default(),
		Transport: tr,
		Sink:      sink,
		Bus:       bus,
		RadiusKm:  200,
	})
	require.NoError(t, err)
	defer svc.Close()

	mumbai := model.GeoPoint{Lat: 19.076, Lng: 72.8777}
	req := model.DispatchRequest{
		IssueID:             "E2E-1",
		Title:               "Waterlogging at junction",
		Description:         "Knee-deep water after rain",
		Category:            model.CategoryWaterSupply,
		Location:            mumbai,
		ReporterDisplayName: "Meera",
		Photos:              [][]byte{[]byte("jpeg")},
	}
	report, err := svc.DispatchIssue(ctx, req, mumbai)
	require.NoError(t, err)

	assert.Equal(t, model.RoundPartial, report.Status)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "mumbai", report.Outcomes[0].TargetID)
	assert.True(t, report.Outcomes[0].Success)
	assert.NotEmpty(t, report.Outcomes[0].ReferenceID)
	assert.Equal(t, "pune", report.Outcomes[1].TargetID)
	assert.False(t, report.Outcomes[1].Success)
	assert.Contains(t, report.Outcomes[1].Message, "outside ward boundaries")

	rec, err := svc.CurrentRecord(ctx, "E2E-1")
	require.NoError(t, err)
	assert.Equal(t, report.Outcomes, rec.Outcomes)

	require.Eventually(t, func() bool {
		n, err := probe.count(ctx, "dispatch_round", "targets", map[string]string{"issue_id": "E2E-1", "status": "partial"})
		return err == nil && n == 1
	}, 30*time.Second, 500*time.Millisecond)

	n, err := probe.count(ctx, "submission_outcome", "latency_ms", map[string]string{"issue_id": "E2E-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stopCollector()
	<-collected
}
