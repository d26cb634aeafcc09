// Command tank-sensor reads a tank level from an ultrasonic rangefinder and
// reports changes to Adafruit IO, sleeping between cycles to stretch battery
// life. State survives power cycles through a small JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tyeth/tank-sensor/internal/buttons"
	"github.com/tyeth/tank-sensor/internal/config"
	"github.com/tyeth/tank-sensor/internal/display"
	"github.com/tyeth/tank-sensor/internal/log"
	"github.com/tyeth/tank-sensor/internal/power"
	"github.com/tyeth/tank-sensor/internal/publish"
	"github.com/tyeth/tank-sensor/internal/scheduler"
	"github.com/tyeth/tank-sensor/internal/sensor"
	"github.com/tyeth/tank-sensor/internal/state"
	"github.com/tyeth/tank-sensor/internal/tank"
)

func main() {
	statePath := flag.String("state", "state.json", "Path to the persisted state file")
	simulate := flag.Bool("simulate", false, "Use a simulated sensor and keyboard buttons")
	transport := flag.String("transport", "mqtt", `Publish transport: "mqtt" or "rest"`)
	debug := flag.Bool("debug", false, "Enable debug logging")
	printState := flag.Bool("print-state", false, "Print the persisted state and exit")
	once := flag.Bool("once", false, "Run a single cycle and exit")

	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*statePath, *simulate, *transport, *printState, *once); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(statePath string, simulate bool, transport string, printState, once bool) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store := &state.Store{
		Path:        statePath,
		DefaultBand: cfg.HysteresisDefault,
		MinBand:     cfg.HysteresisMin,
		MaxBand:     cfg.HysteresisMax,
		MaxReadings: cfg.MaxStoredReadings,
	}

	// Print state mode
	if printState {
		data, err := json.MarshalIndent(store.Load(), "", "  ")
		if err != nil {
			return fmt.Errorf("format state: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	// Writing the loaded state back pins the device identity to the file and
	// proves the path is writable before the first cycle depends on it.
	st := store.Load()
	if err := store.Save(st); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	rng := sensor.Range{
		Min: sensor.Distance(cfg.SensorMinRangeMM),
		Max: sensor.Distance(cfg.SensorMaxRangeMM),
	}

	var reader sensor.Reader
	if simulate {
		reader = sensor.NewSimReader(rng, time.Now().UnixNano())
	} else {
		reader, err = sensor.NewSerialReader(cfg.SensorDevice, cfg.SensorBaud, rng)
		if err != nil {
			return fmt.Errorf("init sensor: %w", err)
		}
	}
	defer reader.Close()

	pub, err := newPublisher(transport, cfg, st.DeviceID)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer pub.Close()

	var src buttons.Source
	if simulate {
		src = buttons.NewKeyboardSource(os.Stdin)
		log.Infof("keyboard buttons: '-' narrower band, '+' wider band, 'r' force report")
	} else {
		src, err = buttons.NewGPIOSource(buttons.DefaultPins())
		if err != nil {
			return fmt.Errorf("init buttons: %w", err)
		}
	}
	defer src.Close()

	renderer := display.NewTerminal(os.Stdout)
	defer renderer.Close()

	sch := &scheduler.Scheduler{
		Reader: reader,
		Burst: sensor.BurstOptions{
			Samples: cfg.SensorSamples,
			Retries: cfg.SensorRetries,
			Pause:   cfg.SensorPause,
		},
		Geometry:          tank.Geometry{DepthMM: cfg.TankDepthMM, SensorGapMM: cfg.TankSensorGapMM},
		Publisher:         pub,
		Renderer:          renderer,
		Store:             store,
		BandStep:          cfg.HysteresisStep,
		PublishRetries:    cfg.PublishRetries,
		MaxReportInterval: cfg.MaxReportInterval,
	}

	ctrl := &power.Controller{
		Buttons:        src,
		Renderer:       renderer,
		ReportInterval: cfg.ReportInterval,
		IdleThreshold:  cfg.DeepSleepIdleThreshold,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("started: device=%s interval=%v band=%dmm feed=%s transport=%s",
		st.DeviceID, cfg.ReportInterval, st.HysteresisBand, cfg.AIOFeed, transport)

	return runLoop(ctx, sch, ctrl, time.Now, once)
}

// runLoop alternates cycles and sleeps until the context is cancelled. Each
// cycle reloads persisted state itself, so a crash or power cut between
// wakes loses nothing but the countdown.
func runLoop(ctx context.Context, sch *scheduler.Scheduler, ctrl *power.Controller, now func() time.Time, once bool) error {
	wake := scheduler.ColdBoot()
	for {
		cycleStart := now()
		res := sch.Cycle(ctx, wake)

		if once {
			log.Infof("single cycle complete: %s", res.Outcome)
			return nil
		}

		next, err := ctrl.Await(ctx, res.Snapshot, ctrl.Plan(cycleStart, now()))
		if err != nil {
			log.Infof("shutting down: %v", err)
			return nil
		}
		wake = next
	}
}

func newPublisher(transport string, cfg config.Config, deviceID string) (publish.Publisher, error) {
	switch transport {
	case "mqtt":
		return publish.NewMQTTPublisher(publish.MQTTOptions{
			Broker:    cfg.AIOBroker,
			ClientID:  "tank-sensor-" + deviceID,
			Username:  cfg.AIOUsername,
			Key:       cfg.AIOKey,
			Feed:      cfg.AIOFeed,
			ErrorFeed: cfg.AIOErrorFeed,
		})
	case "rest":
		return publish.NewRESTPublisher(publish.RESTOptions{
			BaseURL:   cfg.AIOURL,
			Username:  cfg.AIOUsername,
			Key:       cfg.AIOKey,
			Feed:      cfg.AIOFeed,
			ErrorFeed: cfg.AIOErrorFeed,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want mqtt or rest)", transport)
	}
}
