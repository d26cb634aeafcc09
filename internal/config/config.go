// Package config builds the immutable daemon configuration from environment
// variables with documented defaults. The struct is constructed once in main
// and injected; nothing reads the environment after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Adafruit IO endpoints. The REST URL matches the firmware's settings.toml
// default; the broker is the public MQTT endpoint for the same service.
const (
	DefaultAIOURL    = "https://io.adafruit.com/api/v2/"
	DefaultAIOBroker = "tcp://io.adafruit.com:1883"
)

// Config holds all tunables for one monitor instance. Durations are stored
// resolved; mm values are device-local sensor units.
type Config struct {
	// Reporting cadence
	ReportInterval    time.Duration // timer wake period
	MaxReportInterval time.Duration // report at least this often; 0 disables

	// Hysteresis band, millimetres
	HysteresisMin     uint
	HysteresisMax     uint
	HysteresisDefault uint
	HysteresisStep    uint // per button press

	// Power management
	DeepSleepIdleThreshold time.Duration // light idle budget before deep sleep

	// Sensor
	SensorDevice     string        // serial device for the rangefinder
	SensorBaud       int
	SensorMinRangeMM int           // readings below are out of range
	SensorMaxRangeMM int           // readings above are out of range
	SensorSamples    int           // reads per burst
	SensorRetries    int           // burst attempts per cycle
	SensorPause      time.Duration // pause between reads in a burst

	// Tank geometry, millimetres
	TankDepthMM     int // full product depth
	TankSensorGapMM int // sensor face to max-fill surface

	// Publishing
	PublishRetries int // attempts per report
	AIOUsername    string
	AIOKey         string
	AIOFeed        string
	AIOErrorFeed   string
	AIOURL         string // REST endpoint
	AIOBroker      string // MQTT endpoint

	// State
	MaxStoredReadings int // readings history capacity
}

// FromEnv builds a Config from the environment, applying defaults for unset
// variables, and validates it.
func FromEnv() (Config, error) {
	cfg := Config{
		ReportInterval:    getEnvSeconds("REPORT_INTERVAL_SECONDS", 30),
		MaxReportInterval: getEnvSeconds("MAX_REPORT_INTERVAL_SECONDS", 86400),

		HysteresisMin:     uint(getEnvInt("HYSTERESIS_MIN", 5)),
		HysteresisMax:     uint(getEnvInt("HYSTERESIS_MAX", 100)),
		HysteresisDefault: uint(getEnvInt("HYSTERESIS_DEFAULT", 20)),
		HysteresisStep:    uint(getEnvInt("HYSTERESIS_STEP", 5)),

		DeepSleepIdleThreshold: getEnvSeconds("DEEP_SLEEP_IDLE_THRESHOLD_SECONDS", 30),

		SensorDevice:     getEnv("SENSOR_DEVICE", "/dev/ttyAMA0"),
		SensorBaud:       getEnvInt("SENSOR_BAUD", 9600),
		SensorMinRangeMM: getEnvInt("SENSOR_MIN_RANGE_MM", 50),
		SensorMaxRangeMM: getEnvInt("SENSOR_MAX_RANGE_MM", 4000),
		SensorSamples:    getEnvInt("SENSOR_SAMPLES", 10),
		SensorRetries:    getEnvInt("SENSOR_RETRIES", 3),
		SensorPause:      time.Duration(getEnvInt("SENSOR_SAMPLE_PAUSE_MS", 100)) * time.Millisecond,

		TankDepthMM:     getEnvInt("TANK_DEPTH_MM", 1200),
		TankSensorGapMM: getEnvInt("TANK_SENSOR_GAP_MM", 100),

		PublishRetries: getEnvInt("PUBLISH_RETRIES", 2),
		AIOUsername:    getEnv("AIO_USERNAME", ""),
		AIOKey:         getEnv("AIO_KEY", ""),
		AIOFeed:        getEnv("AIO_FEED", "oil-tank-depth"),
		AIOErrorFeed:   getEnv("AIO_ERROR_FEED", "error"),
		AIOURL:         getEnv("AIO_URL", DefaultAIOURL),
		AIOBroker:      getEnv("AIO_BROKER", DefaultAIOBroker),

		MaxStoredReadings: getEnvInt("MAX_STORED_READINGS", 5),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks internal consistency. Configuration errors are the one
// class of error that is fatal at startup.
func (c Config) Validate() error {
	if c.ReportInterval <= 0 {
		return fmt.Errorf("REPORT_INTERVAL_SECONDS must be positive, got %v", c.ReportInterval)
	}
	if c.MaxReportInterval < 0 {
		return fmt.Errorf("MAX_REPORT_INTERVAL_SECONDS must be >= 0, got %v", c.MaxReportInterval)
	}
	if c.HysteresisMin == 0 || c.HysteresisMax < c.HysteresisMin {
		return fmt.Errorf("hysteresis range [%d, %d] is invalid", c.HysteresisMin, c.HysteresisMax)
	}
	if c.HysteresisDefault < c.HysteresisMin || c.HysteresisDefault > c.HysteresisMax {
		return fmt.Errorf("HYSTERESIS_DEFAULT %d outside [%d, %d]", c.HysteresisDefault, c.HysteresisMin, c.HysteresisMax)
	}
	if c.HysteresisStep == 0 {
		return fmt.Errorf("HYSTERESIS_STEP must be positive")
	}
	if c.DeepSleepIdleThreshold < 0 {
		return fmt.Errorf("DEEP_SLEEP_IDLE_THRESHOLD_SECONDS must be >= 0, got %v", c.DeepSleepIdleThreshold)
	}
	if c.SensorBaud <= 0 {
		return fmt.Errorf("SENSOR_BAUD must be positive, got %d", c.SensorBaud)
	}
	if c.SensorMinRangeMM < 0 || c.SensorMaxRangeMM <= c.SensorMinRangeMM {
		return fmt.Errorf("sensor range [%d, %d] mm is invalid", c.SensorMinRangeMM, c.SensorMaxRangeMM)
	}
	if c.SensorPause < 0 {
		return fmt.Errorf("SENSOR_SAMPLE_PAUSE_MS must be >= 0, got %v", c.SensorPause)
	}
	if c.SensorSamples < 1 {
		return fmt.Errorf("SENSOR_SAMPLES must be >= 1, got %d", c.SensorSamples)
	}
	if c.SensorRetries < 1 {
		return fmt.Errorf("SENSOR_RETRIES must be >= 1, got %d", c.SensorRetries)
	}
	if c.TankDepthMM <= 0 {
		return fmt.Errorf("TANK_DEPTH_MM must be positive, got %d", c.TankDepthMM)
	}
	if c.TankSensorGapMM < 0 {
		return fmt.Errorf("TANK_SENSOR_GAP_MM must be >= 0, got %d", c.TankSensorGapMM)
	}
	if c.PublishRetries < 1 {
		return fmt.Errorf("PUBLISH_RETRIES must be >= 1, got %d", c.PublishRetries)
	}
	if c.MaxStoredReadings < 0 {
		return fmt.Errorf("MAX_STORED_READINGS must be >= 0, got %d", c.MaxStoredReadings)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
