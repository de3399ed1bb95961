package wakeword

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/mjolnir-labs/heisenberg-core/internal/wavutil"
)

// debugDumper accumulates every frame fed to the engine while armed and
// writes it to a single WAV file on flush, mirroring the STT engine's
// per-utterance debug dump but spanning the engine's whole running
// lifetime rather than a single utterance.
type debugDumper struct {
	mu      sync.Mutex
	dir     string
	samples []int16
}

func newDebugDumper(dir string) *debugDumper {
	return &debugDumper{dir: dir}
}

func (d *debugDumper) write(frame []int16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, frame...)
}

func (d *debugDumper) flush() {
	d.mu.Lock()
	samples := d.samples
	d.samples = nil
	d.mu.Unlock()

	if len(samples) == 0 {
		return
	}

	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	name := fmt.Sprintf("debug_wakeword_%s.wav", hex.EncodeToString(suffix))
	path := filepath.Join(d.dir, name)

	if err := wavutil.WriteInt16Mono(path, 16000, samples); err != nil {
		log.Printf("[wakeword] debug dump failed: %v", err)
		return
	}
	log.Printf("[wakeword] wrote debug dump %s", path)
}
