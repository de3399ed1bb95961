// Package wavutil writes 16-bit mono PCM WAV files for debug dumps. No
// third-party WAV encoder appears anywhere in the retrieved pack (every
// repo that touches WAV bytes does so over an HTTP multipart body or a
// model's own I/O, never via a dedicated encoding library), so this is
// a small stdlib encoding/binary writer rather than an adopted dependency.
package wavutil

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WriteInt16Mono writes samples as a 16-bit little-endian mono PCM WAV
// file at sampleRate to path.
func WriteInt16Mono(path string, sampleRate int, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavutil: create %s: %w", path, err)
	}
	defer f.Close()

	dataSize := uint32(len(samples) * 2)
	byteRate := uint32(sampleRate * 2)

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      byteRate,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("wavutil: write header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("wavutil: write samples: %w", err)
	}
	return nil
}
