package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fatigue.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 60.0, c.PeakThresholdDeg)
	assert.Equal(t, 20.0, c.SampleIntervalMS)
	assert.Equal(t, 100.0, c.SmoothingWindowMS)
	assert.Equal(t, SourceMQTT, c.SampleSource)
	require.NoError(t, c.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# broker
MQTT_BROKER = tcp://broker:1883
PEAK_THRESHOLD_DEG=55.5
SAMPLE_SOURCE=serial
SERIAL_WRIST_PORT=/dev/ttyACM0
SERIAL_ARM_PORT=/dev/ttyACM1
REDIS_ADDR=localhost:6379
REDIS_DB=2
DISPLAY_ENABLED=true
IMU_GYRO_RANGE=3
LOG_FORMAT=console
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", c.MQTTBroker)
	assert.Equal(t, 55.5, c.PeakThresholdDeg)
	assert.Equal(t, SourceSerial, c.SampleSource)
	assert.Equal(t, "/dev/ttyACM1", c.SerialArmPort)
	assert.Equal(t, 2, c.RedisDB)
	assert.True(t, c.DisplayEnabled)
	assert.Equal(t, byte(3), c.IMUGyroRange)
	assert.Equal(t, "console", c.LogFormat)
	// untouched keys keep their defaults
	assert.Equal(t, 100.0, c.SmoothingWindowMS)
	assert.Equal(t, "fatigue/state", c.TopicFatigue)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":          "NOPE=1",
		"missing equals":       "MQTT_BROKER",
		"bad float":            "PEAK_THRESHOLD_DEG=high",
		"non-positive float":   "SAMPLE_INTERVAL_MS=0",
		"range out of bounds":  "IMU_ACCEL_RANGE=4",
		"bad source":           "SAMPLE_SOURCE=udp",
		"serial without ports": "SAMPLE_SOURCE=serial",
		"same serial ports":    "SAMPLE_SOURCE=serial\nSERIAL_WRIST_PORT=/dev/a\nSERIAL_ARM_PORT=/dev/a",
		"empty broker":         "MQTT_BROKER=",
		"bad bool":             "DISPLAY_ENABLED=maybe",
		"bad log level":        "LOG_LEVEL=trace",
		"tiny window":          "SMOOTHING_WINDOW_MS=5",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	assert.Error(t, err)
}
