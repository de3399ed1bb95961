// Package config provides configuration and CLI argument parsing for the
// voice assistant core.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mjolnir-labs/heisenberg-core/internal/llm/prompt"
	"github.com/mjolnir-labs/heisenberg-core/internal/sherpa"
)

// AudioConfig configures the capture device and DSP pipeline (C1).
type AudioConfig struct {
	DeviceIndex int // -1 lets the backend pick the default device
	Channels    int
	ChunkMs     int
	SampleRate  int // output rate delivered to consumers; always 16000
	BufferMs    uint32
	Denoise     bool
}

// WakeWordConfig configures the wake-word engine (C3).
type WakeWordConfig struct {
	Models         []string // model identifiers, resolved via ResolveModelName
	Threshold      float32
	Framework      string // inference framework tag, e.g. "onnx"
	DebugDump      bool
	DebugDumpDir   string
	FailSafeListen time.Duration // not read by the main loop, which uses Policies.Timeouts.WakewordListen
}

// STTConfig configures the speech-to-text engine (C4).
type STTConfig struct {
	ModelPath   string
	Language    string
	Workers     int
	Strategy    string // sampling strategy, e.g. "greedy_search"
	BeamPrompt  string
	DebugDump   bool
	DebugDumpDir string
	Provider    string
	Threads     int
}

// VADConfig configures the voice-activity detector (C2).
type VADConfig struct {
	Enabled            bool
	ModelPath          string
	Threshold          float32
	MinSilenceDuration int // milliseconds
	SpeechPadMs        int
	Threads            int
}

// LLMConfig configures the completion client (C5).
type LLMConfig struct {
	Endpoint      string
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	MaxTokens     int
	Timeout       time.Duration
	SystemPrompt  string
	Persona       string
	Format        prompt.Format
	MaxHistoryTurns int
}

// LoggingConfig configures the ambient logging output.
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text" (the only format produced today)
}

// Timeouts groups every fail-safe duration the main loop enforces,
// replacing a scattered set of inline constants with one value the main
// loop and tests can both read.
type Timeouts struct {
	WakewordListen time.Duration
	STTSilence     time.Duration
	LLMGeneration  time.Duration
	TTSPlayback    time.Duration
}

// Policies groups behavioral knobs that are not wire-level configuration
// but still shape the main loop's turn lifecycle.
type Policies struct {
	Timeouts     Timeouts
	AllowBargeIn bool // unwired: INTERRUPT has no handler in this implementation
	MaxRetries   int
}

// Config holds the full configuration bundle (§3 Configuration bundle).
type Config struct {
	ModelDir string

	Audio    AudioConfig
	WakeWord WakeWordConfig
	STT      STTConfig
	VAD      VADConfig
	LLM      LLMConfig
	Logging  LoggingConfig
	Policies Policies

	Provider string // hardware acceleration provider (cpu, cuda, coreml); "" = auto-detect

	NumThreads int // global default; per-component Threads fields override when > 0

	Verbose bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultModelDir := filepath.Join(homeDir, ".heisenberg-core", "models")

	return &Config{
		ModelDir: defaultModelDir,

		Audio: AudioConfig{
			DeviceIndex: -1,
			Channels:    1,
			ChunkMs:     10,
			SampleRate:  16000,
			BufferMs:    0,
			Denoise:     true,
		},

		WakeWord: WakeWordConfig{
			Models:         nil,
			Threshold:      0.5,
			Framework:      "onnx",
			DebugDump:      false,
			FailSafeListen: 10 * time.Second,
		},

		STT: STTConfig{
			Language: "en",
			Workers:  1,
			Strategy: "greedy_search",
		},

		VAD: VADConfig{
			Enabled:            true,
			Threshold:          0.5,
			MinSilenceDuration: 800,
			SpeechPadMs:        30,
		},

		LLM: LLMConfig{
			Endpoint:        "http://localhost:11434/completion",
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.9,
			RepeatPenalty:   1.1,
			MaxTokens:       256,
			Timeout:         60 * time.Second,
			SystemPrompt:    prompt.Personas["default"],
			Persona:         "default",
			Format:          prompt.Plain,
			MaxHistoryTurns: 10,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},

		Policies: Policies{
			Timeouts: Timeouts{
				WakewordListen: 10 * time.Second,
				STTSilence:     800 * time.Millisecond,
				LLMGeneration:  60 * time.Second,
				TTSPlayback:    30 * time.Second,
			},
			AllowBargeIn: false,
			MaxRetries:   0,
		},

		Provider: "",
	}
}

// ParseFlags parses command-line flags and returns a Config. CLI overrides
// are optional: every flag defaults to DefaultConfig's value, so running
// with no flags at all is a supported configuration.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.StringVar(&cfg.ModelDir, "model-dir", cfg.ModelDir, "Directory containing model files (VAD, wake-word, Whisper)")

	// Audio settings
	flag.IntVar(&cfg.Audio.SampleRate, "sample-rate", cfg.Audio.SampleRate, "Output sample rate delivered to consumers")
	flag.BoolVar(&cfg.Audio.Denoise, "denoise", cfg.Audio.Denoise, "Enable the RNN-style denoise stage (requires 48kHz capture)")
	audioBufferMs := flag.Uint("audio-buffer-ms", uint(cfg.Audio.BufferMs), "Audio buffer size in ms (0=auto)")

	// Wake-word settings
	wakeWordModel := flag.String("wake-word-model", "", "Wake-word model identifier (resolved against the pretrained catalog)")
	threshold := float64(cfg.WakeWord.Threshold)
	flag.Float64Var(&threshold, "wake-word-threshold", threshold, "Wake-word detection threshold (0.0-1.0)")
	flag.BoolVar(&cfg.WakeWord.DebugDump, "wake-word-debug-dump", cfg.WakeWord.DebugDump, "Write fed wake-word audio to a debug WAV")

	// VAD settings
	flag.BoolVar(&cfg.VAD.Enabled, "vad-enabled", cfg.VAD.Enabled, "Enable voice-activity detection")
	vadThreshold := float64(cfg.VAD.Threshold)
	flag.Float64Var(&vadThreshold, "vad-threshold", vadThreshold, "Voice activity detection threshold (0.0-1.0)")
	flag.IntVar(&cfg.VAD.MinSilenceDuration, "vad-min-silence-ms", cfg.VAD.MinSilenceDuration, "Minimum silence duration (ms) before speech is considered ended")

	// STT settings
	flag.StringVar(&cfg.STT.Language, "stt-language", cfg.STT.Language, "STT language code (e.g. 'en', 'es', 'auto')")
	flag.BoolVar(&cfg.STT.DebugDump, "stt-debug-dump", cfg.STT.DebugDump, "Write the STT input buffer to a debug WAV")

	// LLM settings
	flag.StringVar(&cfg.LLM.Endpoint, "llm-endpoint", cfg.LLM.Endpoint, "LLM completion endpoint URL")
	flag.StringVar(&cfg.LLM.Persona, "llm-persona", cfg.LLM.Persona, "Named system-prompt persona (default, concise, friendly, professional, technical)")
	flag.StringVar(&cfg.LLM.SystemPrompt, "llm-system-prompt", "", "System prompt, overrides --llm-persona when set")
	flag.IntVar(&cfg.LLM.MaxHistoryTurns, "max-history", cfg.LLM.MaxHistoryTurns, "Maximum conversation history length in turns")
	temperature := float64(cfg.LLM.Temperature)
	flag.Float64Var(&temperature, "temperature", temperature, "LLM temperature (0.0-2.0)")
	var formatStr string
	flag.StringVar(&formatStr, "llm-prompt-format", string(cfg.LLM.Format), "Prompt format: chatml, llama2, or plain")

	// Hardware acceleration
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "Hardware acceleration provider (cpu, cuda, coreml). Auto-detected if not specified")
	flag.IntVar(&cfg.NumThreads, "num-threads", cfg.NumThreads, "Number of threads for all models (0 = auto-detect based on CPU cores)")

	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")

	flag.Parse()

	cfg.Audio.BufferMs = uint32(*audioBufferMs)
	cfg.WakeWord.Threshold = float32(threshold)
	cfg.VAD.Threshold = float32(vadThreshold)
	cfg.LLM.Temperature = float32(temperature)

	if *wakeWordModel != "" {
		cfg.WakeWord.Models = []string{*wakeWordModel}
	}

	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = prompt.ResolvePersona(cfg.LLM.Persona)
	}

	switch prompt.Format(formatStr) {
	case prompt.ChatML, prompt.Llama2, prompt.Plain:
		cfg.LLM.Format = prompt.Format(formatStr)
	default:
		cfg.LLM.Format = prompt.Plain
	}

	if cfg.Verbose {
		cfg.Logging.Level = "debug"
	}

	if cfg.Provider == "" {
		cfg.Provider = detectProvider()
	}

	cfg.normalizeThreadCounts()

	cfg.VAD.ModelPath = filepath.Join(cfg.ModelDir, "silero_vad.onnx")
	cfg.STT.ModelPath = filepath.Join(cfg.ModelDir, "whisper")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalizeThreadCounts auto-detects and sets reasonable thread counts
// based on CPU cores when a component's Threads field is left at 0.
func (c *Config) normalizeThreadCounts() {
	if c.NumThreads == 0 {
		c.NumThreads = max(1, runtime.NumCPU()/3)
	}
	if c.VAD.Threads == 0 {
		c.VAD.Threads = 1
	}
	if c.STT.Threads == 0 {
		c.STT.Threads = c.NumThreads
	}
}

func (c *Config) validate() error {
	if c.WakeWord.Threshold < 0 || c.WakeWord.Threshold > 1 {
		return fmt.Errorf("wake-word threshold must be in [0,1], got %f", c.WakeWord.Threshold)
	}
	if c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
		return fmt.Errorf("vad threshold must be in [0,1], got %f", c.VAD.Threshold)
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm endpoint must not be empty")
	}
	return nil
}

// detectProvider auto-detects the best hardware acceleration provider for
// the current platform.
func detectProvider() string {
	switch runtime.GOOS {
	case "darwin":
		return "coreml"
	case "linux":
		if sherpa.HasNvidiaGPU() {
			return "cuda"
		}
		return "cpu"
	default:
		return "cpu"
	}
}
