// Command capacity-meter drives up to four battery channels through
// charge/discharge cycling, deriving electrical events from ADC samples
// and publishing BC/SoC transitions and results to MQTT.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/fitzterra/battery-capacity-meter/internal/adc"
	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
	"github.com/fitzterra/battery-capacity-meter/internal/bus"
	"github.com/fitzterra/battery-capacity-meter/internal/channel"
	"github.com/fitzterra/battery-capacity-meter/internal/commandrouter"
	"github.com/fitzterra/battery-capacity-meter/internal/config"
	"github.com/fitzterra/battery-capacity-meter/internal/domain"
	"github.com/fitzterra/battery-capacity-meter/internal/operator"
	"github.com/fitzterra/battery-capacity-meter/internal/sampler"
	"github.com/fitzterra/battery-capacity-meter/internal/status"
	"github.com/fitzterra/battery-capacity-meter/internal/switchio"
	"github.com/fitzterra/battery-capacity-meter/internal/telemetry"
	"github.com/fitzterra/battery-capacity-meter/internal/web"
)

const numChannels = 4

// maxSampleGap bounds how long a coulomb.Integrator will bridge a gap
// between consecutive samples before dropping it as untrustworthy — five
// sample intervals at the default 50ms rate.
const maxSampleGap = 250 * time.Millisecond

var log = logrus.New()

type args struct {
	Config       string `arg:"--config" help:"path to a config file (yaml/toml/json)"`
	Broker       string `arg:"--broker" default:"tcp://127.0.0.1:1883" help:"MQTT broker address"`
	TopicPrefix  string `arg:"--topic-prefix" default:"battery-capacity-meter" help:"MQTT topic prefix"`
	RecordFile   string `arg:"--record-file" help:"write telemetry as line-delimited JSON to this file instead of MQTT"`
	HTTPAddr     string `arg:"--http" default:":8080" help:"HTTP status address, empty to disable"`
	OperatorAddr string `arg:"--operator" help:"TCP address to accept operator commands on, empty to read stdin"`
	LogLevel     string `arg:"-l,--log-level" default:"info" help:"debug, info, warn, or error"`
}

func main() {
	var a args
	arg.MustParse(&a)
	setLogLevel(a.LogLevel)

	if err := run(a); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

func run(a args) error {
	cfg := config.New()
	if err := cfg.Load(a.Config); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}
	i2cBus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("open i2c bus: %w", err)
	}
	defer i2cBus.Close()

	arbiter := bus.New(cfg.BusMaxHold())

	wiring := make(map[int]adc.Wiring, numChannels)
	cal := make(map[int]adc.Calibration, numChannels)
	for i := 0; i < numChannels; i++ {
		wiring[i] = adc.DefaultWiring(i)
		cal[i] = cfg.Calibration(i)
	}
	reader := adc.NewReal(i2cBus, arbiter, wiring, cal)

	driver, err := switchio.NewReal(defaultLines())
	if err != nil {
		return fmt.Errorf("init switchio: %w", err)
	}
	defer driver.Close()

	sink, err := openSink(a.Broker, a.TopicPrefix, a.RecordFile)
	if err != nil {
		return fmt.Errorf("open telemetry sink: %w", err)
	}
	if closer, ok := sink.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	channelIDs := make([]int, numChannels)
	for i := range channelIDs {
		channelIDs[i] = i
	}
	router := telemetry.NewRouter(sink, channelIDs, telemetry.DefaultSampleQueueCap)

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleIntervalMs: cfg.SampleInterval().Milliseconds(),
		RestS:            int64(cfg.RestDuration().Seconds()),
		MaxCycles:        cfg.MaxCycles(),
		Broker:           a.Broker,
		HTTPPort:         a.HTTPAddr,
	})

	idGen := bcfsm.NewCounterIDGenerator()
	chans := make(map[int]*channel.Channel, numChannels)
	supervisors := make(map[int]commandrouter.Supervisor, numChannels)
	for i := 0; i < numChannels; i++ {
		ch := channel.New(i, cfg, driver, idGen, router, maxSampleGap)
		ch.SetTracker(tracker)
		chans[i] = ch
		supervisors[i] = ch
	}
	cmdRouter := commandrouter.New(supervisors)

	opSource, err := openOperatorSource(a.OperatorAddr)
	if err != nil {
		return fmt.Errorf("open operator source: %w", err)
	}
	defer opSource.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < numChannels; i++ {
		i := i
		go chans[i].Run(ctx)
		samplerTicker := time.NewTicker(cfg.SampleInterval())
		defer samplerTicker.Stop()
		s := sampler.New(i, reader)
		go s.Run(ctx, time.Now, samplerTicker.C, chans[i].SubmitSample, chans[i].SubmitFault)
	}

	routerTicker := time.NewTicker(50 * time.Millisecond)
	defer routerTicker.Stop()
	go router.Run(ctx, routerTicker.C)

	if a.HTTPAddr != "" {
		srv := web.New(a.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", a.HTTPAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	mqttSink, reportsMQTT := sink.(*telemetry.MQTTSink)
	mqttTicker := time.NewTicker(5 * time.Second)
	defer mqttTicker.Stop()

	heartbeatTicker := time.NewTicker(cfg.HeartbeatInterval())
	defer heartbeatTicker.Stop()

	log.Infof("started: %d channels, sample_interval=%v rest=%v max_cycles=%d broker=%s",
		numChannels, cfg.SampleInterval(), cfg.RestDuration(), cfg.MaxCycles(), a.Broker)

	for {
		select {
		case s := <-sigCh:
			log.Infof("received %v, disabling all channels and shutting down", s)
			cmdRouter.Deliver(domain.OperatorEvent{ChannelID: domain.Broadcast, Tag: domain.OpDisable})
			time.Sleep(100 * time.Millisecond) // let the disable land before tearing down
			return nil
		case ev := <-opSource.Events():
			cmdRouter.Deliver(ev)
		case <-mqttTicker.C:
			if reportsMQTT {
				tracker.SetMQTTConnected(mqttSink.IsConnected())
			}
		case <-heartbeatTicker.C:
			emitHeartbeats(router, tracker)
		}
	}
}

// emitHeartbeats offers one heartbeat record per channel, carrying
// process uptime and that channel's current fault count, read from the
// same status tracker the HTTP endpoint serves.
func emitHeartbeats(router *telemetry.Router, tracker *status.Tracker) {
	snap := tracker.Snapshot()
	now := time.Now()
	for i, ch := range snap.Channels {
		router.Offer(domain.Record{
			ChannelID: i,
			Kind:      domain.KindHeartbeat,
			T:         now,
			Payload:   domain.HeartbeatPayload{Uptime: snap.Uptime(), NumFaults: ch.Faults},
		})
	}
}

func openSink(broker, topicPrefix, recordFile string) (telemetry.Sink, error) {
	if recordFile != "" {
		f, err := os.OpenFile(recordFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open record file: %w", err)
		}
		return telemetry.NewFileSink(f), nil
	}
	return telemetry.NewMQTTSink(broker, topicPrefix)
}

func openOperatorSource(addr string) (operator.Source, error) {
	onParseErr := func(err error) { log.Warnf("operator: %v", err) }
	if addr == "" {
		return operator.NewReal(os.Stdin, nil, onParseErr), nil
	}
	return operator.ListenTCP(addr, onParseErr)
}

// defaultLines returns placeholder switchio wiring for all channels.
// Real deployments would source these from config.
func defaultLines() map[int]switchio.Lines {
	lines := make(map[int]switchio.Lines, numChannels)
	for i := 0; i < numChannels; i++ {
		lines[i] = switchio.DefaultLines(i)
	}
	return lines
}
