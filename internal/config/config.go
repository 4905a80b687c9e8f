package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Sample sources.
const (
	SourceMQTT   = "mqtt"
	SourceSerial = "serial"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDMonitor  string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string

	// Topics
	TopicEulerWrist    string
	TopicEulerArm      string
	TopicInertialWrist string
	TopicInertialArm   string
	TopicFatigue       string

	// Pipeline
	PeakThresholdDeg  float64
	SampleIntervalMS  float64
	SmoothingWindowMS float64

	// Artifacts
	ModelPath  string
	ScalerPath string

	// Sample source: "mqtt" or "serial"
	SampleSource    string
	SerialWristPort string
	SerialArmPort   string
	SerialBaudRate  int

	// Output
	OutputDir    string
	OutputPrefix string
	SQLitePath   string // empty disables the database

	// Redis fan-out; empty address disables it
	RedisAddr      string
	RedisDB        int
	RedisKeyPrefix string

	// Web Server
	WebServerPort int // 0 disables the web server

	// Display
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// IMU Hardware
	IMUWristSPIDevice string
	IMUWristCSPin     string
	IMUArmSPIDevice   string
	IMUArmCSPin       string
	IMUSampleInterval int // milliseconds

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Logging
	LogLevel  string
	LogFormat string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
//
// Only process-wide settings live here; per-session state never does.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDMonitor:  "fatigue-monitor",
		MQTTClientIDProducer: "fatigue-imu-producer",
		MQTTClientIDConsole:  "fatigue-console",

		TopicEulerWrist:    "fatigue/wrist/euler",
		TopicEulerArm:      "fatigue/arm/euler",
		TopicInertialWrist: "fatigue/wrist/inertial",
		TopicInertialArm:   "fatigue/arm/inertial",
		TopicFatigue:       "fatigue/state",

		PeakThresholdDeg:  60,
		SampleIntervalMS:  20,
		SmoothingWindowMS: 100,

		ModelPath:  "models/rnn.json",
		ScalerPath: "models/scaler_rnn.json",

		SampleSource:   SourceMQTT,
		SerialBaudRate: 115200,

		OutputDir:    "data",
		OutputPrefix: "participant",

		RedisKeyPrefix: "fatigue",

		WebServerPort: 8080,

		DisplayUpdateInterval: 250,

		IMUWristSPIDevice: "/dev/spidev0.0",
		IMUWristCSPin:     "GPIO8",
		IMUArmSPIDevice:   "/dev/spidev0.1",
		IMUArmCSPin:       "GPIO7",
		IMUSampleInterval: 20,

		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads the configuration file on top of Default().
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func parsePositiveFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_EULER_WRIST":
		c.TopicEulerWrist = value
	case "TOPIC_EULER_ARM":
		c.TopicEulerArm = value
	case "TOPIC_INERTIAL_WRIST":
		c.TopicInertialWrist = value
	case "TOPIC_INERTIAL_ARM":
		c.TopicInertialArm = value
	case "TOPIC_FATIGUE":
		c.TopicFatigue = value

	// Pipeline
	case "PEAK_THRESHOLD_DEG":
		c.PeakThresholdDeg, err = parsePositiveFloat(key, value)
	case "SAMPLE_INTERVAL_MS":
		c.SampleIntervalMS, err = parsePositiveFloat(key, value)
	case "SMOOTHING_WINDOW_MS":
		c.SmoothingWindowMS, err = parsePositiveFloat(key, value)

	// Artifacts
	case "MODEL_PATH":
		c.ModelPath = value
	case "SCALER_PATH":
		c.ScalerPath = value

	// Sample source
	case "SAMPLE_SOURCE":
		if value != SourceMQTT && value != SourceSerial {
			return fmt.Errorf("SAMPLE_SOURCE must be %q or %q, got %q", SourceMQTT, SourceSerial, value)
		}
		c.SampleSource = value
	case "SERIAL_WRIST_PORT":
		c.SerialWristPort = value
	case "SERIAL_ARM_PORT":
		c.SerialArmPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value, 1, 4000000)

	// Output
	case "OUTPUT_DIR":
		c.OutputDir = value
	case "OUTPUT_PREFIX":
		c.OutputPrefix = value
	case "SQLITE_PATH":
		c.SQLitePath = value

	// Redis
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_DB":
		c.RedisDB, err = parseInt(key, value, 0, 15)
	case "REDIS_KEY_PREFIX":
		c.RedisKeyPrefix = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 0, 65535)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 10, 60000)

	// IMU Hardware
	case "IMU_WRIST_SPI_DEVICE":
		c.IMUWristSPIDevice = value
	case "IMU_WRIST_CS_PIN":
		c.IMUWristCSPin = value
	case "IMU_ARM_SPI_DEVICE":
		c.IMUArmSPIDevice = value
	case "IMU_ARM_CS_PIN":
		c.IMUArmCSPin = value
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parseInt(key, value, 1, 60000)

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		var v int
		if v, err = parseInt(key, value, 0, 3); err == nil {
			c.IMUAccelRange = byte(v)
		}
	case "IMU_GYRO_RANGE":
		var v int
		if v, err = parseInt(key, value, 0, 3); err == nil {
			c.IMUGyroRange = byte(v)
		}

	// Logging
	case "LOG_LEVEL":
		switch value {
		case "debug", "info", "warn", "error":
			c.LogLevel = value
		default:
			return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", value)
		}
	case "LOG_FORMAT":
		if value != "json" && value != "console" {
			return fmt.Errorf("LOG_FORMAT must be json or console, got %q", value)
		}
		c.LogFormat = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SampleSource == SourceSerial {
		if c.SerialWristPort == "" {
			return fmt.Errorf("SERIAL_WRIST_PORT is required when SAMPLE_SOURCE=serial")
		}
		if c.SerialArmPort == "" {
			return fmt.Errorf("SERIAL_ARM_PORT is required when SAMPLE_SOURCE=serial")
		}
		if c.SerialWristPort == c.SerialArmPort {
			return fmt.Errorf("SERIAL_WRIST_PORT and SERIAL_ARM_PORT must differ")
		}
	}
	if c.SmoothingWindowMS < c.SampleIntervalMS/2 {
		return fmt.Errorf("SMOOTHING_WINDOW_MS (%v) is shorter than half a sample (%v ms)", c.SmoothingWindowMS, c.SampleIntervalMS)
	}
	if c.OutputPrefix == "" {
		return fmt.Errorf("OUTPUT_PREFIX is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
