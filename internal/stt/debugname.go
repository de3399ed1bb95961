package stt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// randomDebugName returns "<prefix>_<8-hex>.wav", matching the naming
// scheme for debug artifacts.
func randomDebugName(prefix string) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("stt: generate debug suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s.wav", prefix, hex.EncodeToString(suffix)), nil
}
