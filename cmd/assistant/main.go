// Heisenberg Core - a real-time voice assistant core built on sherpa-onnx
//
// This program wires together:
// - Audio capture and DSP (denoise, resample, RMS normalize)
// - Voice Activity Detection (Silero-VAD)
// - Wake-word spotting (sherpa-onnx keyword spotter)
// - Speech-to-Text (Whisper via sherpa-onnx)
// - LLM integration (a local completion endpoint)
//
// Text-to-speech is defined as an interface only; no synthesis backend
// is wired in here.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mjolnir-labs/heisenberg-core/internal/apperr"
	"github.com/mjolnir-labs/heisenberg-core/internal/audio"
	"github.com/mjolnir-labs/heisenberg-core/internal/config"
	"github.com/mjolnir-labs/heisenberg-core/internal/event"
	"github.com/mjolnir-labs/heisenberg-core/internal/fsm"
	"github.com/mjolnir-labs/heisenberg-core/internal/llm"
	"github.com/mjolnir-labs/heisenberg-core/internal/mainloop"
	"github.com/mjolnir-labs/heisenberg-core/internal/metrics"
	"github.com/mjolnir-labs/heisenberg-core/internal/router"
	"github.com/mjolnir-labs/heisenberg-core/internal/sherpa"
	"github.com/mjolnir-labs/heisenberg-core/internal/stt"
	"github.com/mjolnir-labs/heisenberg-core/internal/vad"
	"github.com/mjolnir-labs/heisenberg-core/internal/wakeword"
)

var (
	errSpotterLoad    = apperr.NewWakeWordError("load keyword spotter", errors.New("model failed to load"))
	errStreamCreate   = apperr.NewWakeWordError("create online stream", errors.New("stream allocation failed"))
	errRecognizerLoad = apperr.NewSTTError("load offline recognizer", errors.New("model failed to load"))
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	log.Println("voice assistant starting...")
	log.Printf("provider: %s, threads: %d", cfg.Provider, cfg.NumThreads)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	events := make(chan event.Event, 16)

	vadDetector, err := newVADDetector(cfg)
	if err != nil {
		log.Fatalf("failed to build VAD: %v", err)
	}

	wwEngine, err := newWakeWordEngine(cfg, events)
	if err != nil {
		log.Fatalf("failed to build wake-word engine: %v", err)
	}

	sttEngine, err := newSTTEngine(cfg, events)
	if err != nil {
		log.Fatalf("failed to build STT engine: %v", err)
	}

	log.Printf("connecting to LLM at %s...", cfg.LLM.Endpoint)
	llmClient, err := llm.NewClient(llm.Config{
		Endpoint:      cfg.LLM.Endpoint,
		Temperature:   cfg.LLM.Temperature,
		TopK:          cfg.LLM.TopK,
		TopP:          cfg.LLM.TopP,
		RepeatPenalty: cfg.LLM.RepeatPenalty,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.LLM.Timeout,
		SystemPrompt:  cfg.LLM.SystemPrompt,
		Format:        cfg.LLM.Format,
		MaxHistory:    cfg.LLM.MaxHistoryTurns,
	})
	if err != nil {
		log.Fatalf("failed to create LLM client: %v", err)
	}

	var denoiser audio.Denoiser
	if cfg.Audio.Denoise {
		denoiser = audio.NewSpectralFloorDenoiser(0.05)
	}
	source := audio.NewSource(denoiser)

	r := router.New(cfg.Verbose)
	f := fsm.New(r, cfg.Verbose)
	m := metrics.New()

	loop := &mainloop.Loop{
		Source:   source,
		WakeWord: wwEngine,
		VAD:      vadDetector,
		STT:      sttEngine,
		LLM:      llmClient,
		Events:   events,
		FSM:      f,
		Router:   r,
		Metrics:  m,
		Policies: cfg.Policies,
		Verbose:  cfg.Verbose,
	}
	loop.Register()

	runErr := make(chan error, 1)
	go func() {
		runErr <- loop.Run(ctx)
	}()

	log.Println("listening for wake word...")

	select {
	case <-sigChan:
		log.Println("shutting down...")
		cancel()
	case err := <-runErr:
		if err != nil {
			log.Printf("main loop exited: %v", err)
		}
		return
	}

	select {
	case <-runErr:
		log.Println("shutdown complete")
	case <-time.After(time.Second):
		log.Println("shutdown timeout, forcing exit")
	}
}

func newVADDetector(cfg *config.Config) (*vad.Detector, error) {
	if !cfg.VAD.Enabled {
		return vad.NewFailOpen(), nil
	}

	vadConfig := &sherpa.VadModelConfig{}
	vadConfig.SileroVad.Model = cfg.VAD.ModelPath
	vadConfig.SileroVad.Threshold = cfg.VAD.Threshold
	vadConfig.SileroVad.MinSilenceDuration = float32(cfg.VAD.MinSilenceDuration) / 1000.0
	vadConfig.SileroVad.MinSpeechDuration = 0.1
	vadConfig.SileroVad.MaxSpeechDuration = 30.0
	vadConfig.SileroVad.WindowSize = 512
	vadConfig.SampleRate = cfg.Audio.SampleRate
	vadConfig.NumThreads = cfg.VAD.Threads
	if cfg.Verbose {
		vadConfig.Debug = 1
	}

	sherpaVAD := sherpa.NewVoiceActivityDetector(vadConfig, 60.0)
	if sherpaVAD == nil {
		log.Println("VAD model failed to load, falling back to fail-open detector")
		return vad.NewFailOpen(), nil
	}

	return vad.New(vad.NewSherpaModel(sherpaVAD), cfg.VAD.MinSilenceDuration), nil
}

func newWakeWordEngine(cfg *config.Config, events chan<- event.Event) (*wakeword.Engine, error) {
	keyword := "hey_jarvis"
	if len(cfg.WakeWord.Models) > 0 {
		keyword = wakeword.ResolveModelName(cfg.WakeWord.Models[0])
	}

	spotterConfig := &sherpa.KeywordSpotterConfig{}
	spotterConfig.ModelConfig.NumThreads = cfg.NumThreads
	spotterConfig.ModelConfig.Provider = cfg.Provider
	spotterConfig.KeywordsFile = filepath.Join(cfg.ModelDir, "keywords", keyword+".txt")
	spotterConfig.MaxActivePaths = 4
	spotterConfig.KeywordsThreshold = cfg.WakeWord.Threshold
	spotterConfig.KeywordsScore = 1.5
	if cfg.Verbose {
		spotterConfig.ModelConfig.Debug = 1
	}

	spotter := sherpa.NewKeywordSpotter(spotterConfig)
	if spotter == nil {
		return nil, errSpotterLoad
	}
	stream := sherpa.NewOnlineStream(spotter)
	if stream == nil {
		sherpa.DeleteKeywordSpotter(spotter)
		return nil, errStreamCreate
	}

	model := wakeword.NewSherpaModel(spotter, stream, keyword, cfg.Audio.SampleRate)
	engine := wakeword.New(model, cfg.WakeWord.Threshold, events)
	if cfg.WakeWord.DebugDump {
		dir := cfg.WakeWord.DebugDumpDir
		if dir == "" {
			dir = os.TempDir()
		}
		engine.EnableDebugDump(dir)
	}
	return engine, nil
}

func newSTTEngine(cfg *config.Config, events chan<- event.Event) (*stt.Engine, error) {
	recognizerConfig := &sherpa.OfflineRecognizerConfig{}
	recognizerConfig.ModelConfig.Whisper.Encoder = filepath.Join(cfg.STT.ModelPath, "encoder.onnx")
	recognizerConfig.ModelConfig.Whisper.Decoder = filepath.Join(cfg.STT.ModelPath, "decoder.onnx")
	language := cfg.STT.Language
	if language == "auto" {
		language = ""
	}
	recognizerConfig.ModelConfig.Whisper.Language = language
	recognizerConfig.ModelConfig.Whisper.Task = "transcribe"
	recognizerConfig.ModelConfig.Whisper.TailPaddings = -1
	recognizerConfig.ModelConfig.Tokens = filepath.Join(cfg.STT.ModelPath, "tokens.txt")
	recognizerConfig.ModelConfig.NumThreads = cfg.STT.Threads
	recognizerConfig.ModelConfig.Provider = cfg.Provider
	recognizerConfig.DecodingMethod = cfg.STT.Strategy
	if cfg.Verbose {
		recognizerConfig.ModelConfig.Debug = 1
	}

	recognizer := sherpa.NewOfflineRecognizer(recognizerConfig)
	if recognizer == nil {
		return nil, errRecognizerLoad
	}

	model := stt.NewSherpaModel(recognizer, cfg.Audio.SampleRate)
	engine := stt.New(model, cfg.STT.Language, cfg.Audio.SampleRate, cfg.STT.Workers, events)
	if cfg.STT.DebugDump {
		dir := cfg.STT.DebugDumpDir
		if dir == "" {
			dir = os.TempDir()
		}
		engine.EnableDebugDump(dir)
	}
	return engine, nil
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}
