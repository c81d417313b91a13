// internal/regen/wav.go
package regen

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// wavInfo describes the PCM payload of a parsed RIFF/WAVE file.
type wavInfo struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	// DataOffset/DataLen locate the sample payload within the source.
	DataOffset int
	DataLen    int
}

var errNotWAV = errors.New("not a RIFF/WAVE file")

// parseWAV walks the RIFF chunk list and returns the format and payload
// location. Only uncompressed PCM (format tag 1) is accepted.
func parseWAV(data []byte) (*wavInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errNotWAV
	}

	info := &wavInfo{}
	sawFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("short fmt chunk (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format tag %d (want PCM)", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFmt = true
		case "data":
			info.DataOffset = body
			info.DataLen = size
		}
		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt || info.DataLen == 0 {
		return nil, errors.New("missing fmt or data chunk")
	}
	return info, nil
}

// buildWAV wraps a PCM sample slice in a standalone 44-byte-header WAV.
func buildWAV(info *wavInfo, samples []byte) []byte {
	blockAlign := info.Channels * info.BitsPerSample / 8
	byteRate := info.SampleRate * blockAlign

	out := make([]byte, 44+len(samples))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(samples)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(info.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(info.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(info.BitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(samples)))
	copy(out[44:], samples)
	return out
}
