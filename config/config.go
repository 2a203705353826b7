// Package config loads the stream tunables from defaults, environment
// variables and an optional yaml config file. Settings are read once at
// startup and are read-only to the rest of the system.
package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default tunables. Redundancy starts low and ratchets toward the maximum
// under sustained reconstruction failures.
const (
	DefaultInitialFECPercentage = 5
	DefaultMaxFECPercentage     = 10
	DefaultFECStep              = 5
	DefaultFailureWindow        = 60 * time.Second
	DefaultStatisticsInterval   = 100 * time.Millisecond
	DefaultFrameHistorySize     = 128
	DefaultListenAddr           = ":9944"
)

// Settings holds the fixed tunables of one stream connection.
type Settings struct {
	// EnableFEC selects erasure-coded fragmentation. When false, frames go
	// out as single unprotected packets.
	EnableFEC bool

	// InitialFECPercentage and MaxFECPercentage bound the redundancy
	// percentage; FECStep is the ratchet increment applied on sustained
	// reconstruction failures within FailureWindow.
	InitialFECPercentage int
	MaxFECPercentage     int
	FECStep              int
	FailureWindow        time.Duration

	// StatisticsInterval gates the periodic human-readable report.
	StatisticsInterval time.Duration

	// FrameHistorySize bounds the per-connection record of recently sent
	// frames consulted by the tracking-ack path.
	FrameHistorySize int

	// ListenAddr and PeerAddr configure the reference UDP transport.
	ListenAddr string
	PeerAddr   string
}

// Load reads settings from defaults, VRSTREAM_-prefixed environment
// variables and, when path is non-empty, a yaml config file.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("stream.fec.enable", true)
	v.SetDefault("stream.fec.initial_percentage", DefaultInitialFECPercentage)
	v.SetDefault("stream.fec.max_percentage", DefaultMaxFECPercentage)
	v.SetDefault("stream.fec.step", DefaultFECStep)
	v.SetDefault("stream.fec.failure_window", DefaultFailureWindow)
	v.SetDefault("stream.statistics_interval", DefaultStatisticsInterval)
	v.SetDefault("stream.frame_history_size", DefaultFrameHistorySize)
	v.SetDefault("transport.listen_addr", DefaultListenAddr)
	v.SetDefault("transport.peer_addr", "")

	v.SetEnvPrefix("VRSTREAM")
	v.AutomaticEnv()
	_ = v.BindEnv("stream.fec.enable", "VRSTREAM_FEC_ENABLE")
	_ = v.BindEnv("stream.fec.initial_percentage", "VRSTREAM_FEC_INITIAL_PERCENTAGE")
	_ = v.BindEnv("stream.fec.max_percentage", "VRSTREAM_FEC_MAX_PERCENTAGE")
	_ = v.BindEnv("transport.listen_addr", "VRSTREAM_LISTEN_ADDR")
	_ = v.BindEnv("transport.peer_addr", "VRSTREAM_PEER_ADDR")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	s := &Settings{
		EnableFEC:            v.GetBool("stream.fec.enable"),
		InitialFECPercentage: v.GetInt("stream.fec.initial_percentage"),
		MaxFECPercentage:     v.GetInt("stream.fec.max_percentage"),
		FECStep:              v.GetInt("stream.fec.step"),
		FailureWindow:        v.GetDuration("stream.fec.failure_window"),
		StatisticsInterval:   v.GetDuration("stream.statistics_interval"),
		FrameHistorySize:     v.GetInt("stream.frame_history_size"),
		ListenAddr:           v.GetString("transport.listen_addr"),
		PeerAddr:             v.GetString("transport.peer_addr"),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":       "Load",
		"fec_enabled":    s.EnableFEC,
		"fec_initial":    s.InitialFECPercentage,
		"fec_max":        s.MaxFECPercentage,
		"fec_step":       s.FECStep,
		"failure_window": s.FailureWindow.String(),
	}).Info("Loaded stream settings")

	return s, nil
}

// Default returns the built-in settings without touching the environment
// or any config file.
func Default() *Settings {
	return &Settings{
		EnableFEC:            true,
		InitialFECPercentage: DefaultInitialFECPercentage,
		MaxFECPercentage:     DefaultMaxFECPercentage,
		FECStep:              DefaultFECStep,
		FailureWindow:        DefaultFailureWindow,
		StatisticsInterval:   DefaultStatisticsInterval,
		FrameHistorySize:     DefaultFrameHistorySize,
		ListenAddr:           DefaultListenAddr,
	}
}

// Validate checks the settings for internal consistency.
func (s *Settings) Validate() error {
	if s.InitialFECPercentage < 0 {
		return fmt.Errorf("initial FEC percentage cannot be negative: %d", s.InitialFECPercentage)
	}
	if s.MaxFECPercentage < s.InitialFECPercentage {
		return fmt.Errorf("max FEC percentage %d below initial %d",
			s.MaxFECPercentage, s.InitialFECPercentage)
	}
	if s.EnableFEC && s.FECStep <= 0 {
		return fmt.Errorf("FEC step must be positive: %d", s.FECStep)
	}
	if s.FailureWindow <= 0 {
		return fmt.Errorf("failure window must be positive: %s", s.FailureWindow)
	}
	if s.FrameHistorySize <= 0 {
		return fmt.Errorf("frame history size must be positive: %d", s.FrameHistorySize)
	}
	return nil
}
