// Package config loads sierra_core.cfg.json through viper and exposes typed
// views of each section.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/RogersSierra/extension/internal/boiler"
	"github.com/RogersSierra/extension/internal/collision"
	"github.com/RogersSierra/extension/internal/linkage"
	"github.com/RogersSierra/extension/internal/speed"
	"github.com/RogersSierra/extension/internal/train"
)

// FileName is the config file looked up in the module folder.
const FileName = "sierra_core.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	Upload         bool   `json:"upload" mapstructure:"upload"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds the PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// WebSocketConfig holds the live stream settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the telemetry backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server URL built from protocol, host and port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds the GELF sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// TelemetryConfig controls what the recorder captures.
type TelemetryConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	SampleInterval time.Duration `json:"sampleInterval" mapstructure:"sampleInterval"`
	FlushInterval  time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	PistonStrokes  bool          `json:"pistonStrokes" mapstructure:"pistonStrokes"`
	QueueLimit     int           `json:"queueLimit" mapstructure:"queueLimit"`
}

// APIConfig holds the upload server settings.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SetDefaults registers every default value. Load calls it; tools that run
// without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./sierralogs")
	viper.SetDefault("defaultTag", "Freeroam")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./journeys")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.memory.upload", false)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "sierra")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "sierra-metrics")
	viper.SetDefault("influx.bucket", "journeys")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "sierra-core")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.sampleInterval", "500ms")
	viper.SetDefault("telemetry.flushInterval", "2s")
	viper.SetDefault("telemetry.pistonStrokes", false)
	viper.SetDefault("telemetry.queueLimit", 100000)

	viper.SetDefault("monitor.interval", "30s")

	setPhysicsDefaults()
}

func setPhysicsDefaults() {
	b := boiler.DefaultConfig()
	viper.SetDefault("physics.boiler.chargeRate", b.ChargeRate)
	viper.SetDefault("physics.boiler.safetyThreshold", b.SafetyThreshold)
	viper.SetDefault("physics.boiler.bleedRate", b.BleedRate)
	viper.SetDefault("physics.boiler.bleedWindow", b.BleedWindow)
	viper.SetDefault("physics.boiler.drawRate", b.DrawRate)
	viper.SetDefault("physics.boiler.maxPressure", b.MaxPressure)
	viper.SetDefault("physics.boiler.initialPressure", b.InitialPressure)

	s := speed.DefaultConfig()
	viper.SetDefault("physics.speed.accelerationMultiplier", s.AccelerationMultiplier)
	viper.SetDefault("physics.speed.mass", s.Mass)
	viper.SetDefault("physics.speed.frictionCoefficient", s.FrictionCoefficient)
	viper.SetDefault("physics.speed.brakeMultiplier", s.BrakeMultiplier)
	viper.SetDefault("physics.speed.dragCoefficient", s.DragCoefficient)
	viper.SetDefault("physics.speed.maxSteamForce", s.MaxSteamForce)
	viper.SetDefault("physics.speed.maxWheelTraction", s.MaxWheelTraction)
	viper.SetDefault("physics.speed.tractionFadeSpeed", s.TractionFadeSpeed)
	viper.SetDefault("physics.speed.tractionThrottleExponent", s.TractionThrottleExponent)
	viper.SetDefault("physics.speed.slipFrictionGain", s.SlipFrictionGain)
	viper.SetDefault("physics.speed.airBrakeSteamCut", s.AirBrakeSteamCut)
	viper.SetDefault("physics.speed.steamBrakeWheelFactor", s.SteamBrakeWheelFactor)
	viper.SetDefault("physics.speed.stopEpsilon", s.StopEpsilon)
	viper.SetDefault("physics.speed.controlEpsilon", s.ControlEpsilon)

	l := linkage.DefaultConfig()
	viper.SetDefault("physics.linkage.crankPinInset", l.CrankPinInset)
	viper.SetDefault("physics.linkage.connectingRodLength", l.ConnectingRodLength)
	viper.SetDefault("physics.linkage.leverSwing", l.LeverSwing)

	c := collision.DefaultConfig()
	viper.SetDefault("physics.collision.derailMinSpeed", c.DerailMinSpeed)
	viper.SetDefault("physics.collision.derailAngleThreshold", c.DerailAngleThreshold)
	viper.SetDefault("physics.collision.derailRollThreshold", c.DerailRollThreshold)
	viper.SetDefault("physics.collision.coupleSpeedTolerance", c.CoupleSpeedTolerance)
	viper.SetDefault("physics.collision.seed", c.Seed)

	t := train.DefaultConfig()
	viper.SetDefault("physics.maxFrameTime", t.MaxFrameTime)
	viper.SetDefault("physics.effects.dynamoPressure", t.DynamoPressure)
	viper.SetDefault("physics.effects.smokePressure", t.SmokePressure)
	viper.SetDefault("physics.effects.soundMaxSpeed", t.SoundMaxSpeed)
	viper.SetDefault("physics.effects.soundMaxLevel", t.SoundMaxLevel)
	viper.SetDefault("physics.effects.slipTraction", t.SlipTraction)
	viper.SetDefault("physics.effects.slipWheelSpeed", t.SlipWheelSpeed)
	viper.SetDefault("physics.effects.slideSpeed", t.SlideSpeed)
	viper.SetDefault("physics.effects.startSpeed", t.StartSpeed)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetPhysicsConfig returns the calibration of every locomotive subsystem.
func GetPhysicsConfig() train.Config {
	return train.Config{
		Boiler: boiler.Config{
			ChargeRate:      viper.GetFloat64("physics.boiler.chargeRate"),
			SafetyThreshold: viper.GetFloat64("physics.boiler.safetyThreshold"),
			BleedRate:       viper.GetFloat64("physics.boiler.bleedRate"),
			BleedWindow:     viper.GetFloat64("physics.boiler.bleedWindow"),
			DrawRate:        viper.GetFloat64("physics.boiler.drawRate"),
			MaxPressure:     viper.GetFloat64("physics.boiler.maxPressure"),
			InitialPressure: viper.GetFloat64("physics.boiler.initialPressure"),
		},
		Speed: speed.Config{
			AccelerationMultiplier:   viper.GetFloat64("physics.speed.accelerationMultiplier"),
			Mass:                     viper.GetFloat64("physics.speed.mass"),
			FrictionCoefficient:      viper.GetFloat64("physics.speed.frictionCoefficient"),
			BrakeMultiplier:          viper.GetFloat64("physics.speed.brakeMultiplier"),
			DragCoefficient:          viper.GetFloat64("physics.speed.dragCoefficient"),
			MaxSteamForce:            viper.GetFloat64("physics.speed.maxSteamForce"),
			MaxWheelTraction:         viper.GetFloat64("physics.speed.maxWheelTraction"),
			TractionFadeSpeed:        viper.GetFloat64("physics.speed.tractionFadeSpeed"),
			TractionThrottleExponent: viper.GetFloat64("physics.speed.tractionThrottleExponent"),
			SlipFrictionGain:         viper.GetFloat64("physics.speed.slipFrictionGain"),
			AirBrakeSteamCut:         viper.GetFloat64("physics.speed.airBrakeSteamCut"),
			SteamBrakeWheelFactor:    viper.GetFloat64("physics.speed.steamBrakeWheelFactor"),
			StopEpsilon:              viper.GetFloat64("physics.speed.stopEpsilon"),
			ControlEpsilon:           viper.GetFloat64("physics.speed.controlEpsilon"),
		},
		Linkage: linkage.Config{
			CrankPinInset:       viper.GetFloat64("physics.linkage.crankPinInset"),
			ConnectingRodLength: viper.GetFloat64("physics.linkage.connectingRodLength"),
			LeverSwing:          viper.GetFloat64("physics.linkage.leverSwing"),
		},
		Collision: collision.Config{
			DerailMinSpeed:       viper.GetFloat64("physics.collision.derailMinSpeed"),
			DerailAngleThreshold: viper.GetFloat64("physics.collision.derailAngleThreshold"),
			DerailRollThreshold:  viper.GetFloat64("physics.collision.derailRollThreshold"),
			CoupleSpeedTolerance: viper.GetFloat64("physics.collision.coupleSpeedTolerance"),
			Seed:                 viper.GetUint64("physics.collision.seed"),
		},
		MaxFrameTime:   viper.GetFloat64("physics.maxFrameTime"),
		DynamoPressure: viper.GetFloat64("physics.effects.dynamoPressure"),
		SmokePressure:  viper.GetFloat64("physics.effects.smokePressure"),
		SoundMaxSpeed:  viper.GetFloat64("physics.effects.soundMaxSpeed"),
		SoundMaxLevel:  viper.GetFloat64("physics.effects.soundMaxLevel"),
		SlipTraction:   viper.GetFloat64("physics.effects.slipTraction"),
		SlipWheelSpeed: viper.GetFloat64("physics.effects.slipWheelSpeed"),
		SlideSpeed:     viper.GetFloat64("physics.effects.slideSpeed"),
		StartSpeed:     viper.GetFloat64("physics.effects.startSpeed"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			Upload:         viper.GetBool("storage.memory.upload"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetTelemetryConfig returns the telemetry section.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        viper.GetBool("telemetry.enabled"),
		SampleInterval: viper.GetDuration("telemetry.sampleInterval"),
		FlushInterval:  viper.GetDuration("telemetry.flushInterval"),
		PistonStrokes:  viper.GetBool("telemetry.pistonStrokes"),
		QueueLimit:     viper.GetInt("telemetry.queueLimit"),
	}
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
