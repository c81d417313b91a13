// internal/regen/chunker.go
package regen

import (
	"fmt"
	"math"
	"time"
)

// energyFrame is the resolution of the silence scan.
const energyFrame = 100 * time.Millisecond

// Chunk is one bounded sub-segment of a long artifact. Index is the
// position in the original audio; merging is keyed by it, never by
// completion order.
type Chunk struct {
	Index int
	Data  []byte
	Start time.Duration
	End   time.Duration
}

// Chunker splits long PCM WAV audio at silence-biased boundaries. Cut
// points land inside a [MinChunk, MaxChunk] window at the quietest frame
// found there, so a fixed-width cut never lands mid-sentence when a pause
// is available nearby. Each chunk keeps a small overlap past its cut so a
// word straddling the boundary survives transcription.
type Chunker struct {
	MinChunk time.Duration
	MaxChunk time.Duration
	Overlap  time.Duration
}

// NewChunker returns a Chunker with the given window and a 1s overlap.
func NewChunker(minChunk, maxChunk time.Duration) *Chunker {
	return &Chunker{MinChunk: minChunk, MaxChunk: maxChunk, Overlap: 1 * time.Second}
}

// Split parses the WAV payload and returns ordered chunks, each a
// standalone WAV. Audio shorter than MaxChunk comes back as one chunk.
// Requires 16-bit PCM; multi-channel audio is measured across all
// channels.
func (c *Chunker) Split(data []byte) ([]Chunk, error) {
	info, err := parseWAV(data)
	if err != nil {
		return nil, err
	}
	if info.BitsPerSample != 16 {
		return nil, fmt.Errorf("chunking requires 16-bit PCM, got %d-bit", info.BitsPerSample)
	}

	samples := data[info.DataOffset : info.DataOffset+info.DataLen]
	frameBytes := int(energyFrame.Seconds()*float64(info.SampleRate)) * info.Channels * 2
	if frameBytes == 0 {
		return nil, fmt.Errorf("invalid sample rate %d", info.SampleRate)
	}

	energies := frameEnergies(samples, frameBytes)
	minFrames := int(c.MinChunk / energyFrame)
	maxFrames := int(c.MaxChunk / energyFrame)
	cuts := planCuts(energies, minFrames, maxFrames)

	overlapFrames := int(c.Overlap / energyFrame)
	bounds := append([]int{0}, cuts...)
	bounds = append(bounds, len(energies))

	chunks := make([]Chunk, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		startFrame := bounds[i]
		endFrame := bounds[i+1]
		if i+1 < len(bounds)-1 {
			endFrame = min(endFrame+overlapFrames, len(energies))
		}
		lo := startFrame * frameBytes
		hi := min(endFrame*frameBytes, len(samples))
		chunks = append(chunks, Chunk{
			Index: i,
			Data:  buildWAV(info, samples[lo:hi]),
			Start: time.Duration(startFrame) * energyFrame,
			End:   time.Duration(endFrame) * energyFrame,
		})
	}
	return chunks, nil
}

// frameEnergies computes RMS energy per fixed-width frame of interleaved
// 16-bit samples. The trailing partial frame counts as one frame.
func frameEnergies(samples []byte, frameBytes int) []float64 {
	n := (len(samples) + frameBytes - 1) / frameBytes
	energies := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i * frameBytes
		hi := min(lo+frameBytes, len(samples))
		var sum float64
		var count int
		for p := lo; p+1 < hi; p += 2 {
			s := float64(int16(uint16(samples[p]) | uint16(samples[p+1])<<8))
			sum += s * s
			count++
		}
		if count > 0 {
			energies[i] = math.Sqrt(sum / float64(count))
		}
	}
	return energies
}

// planCuts picks cut frames: walking left to right, each cut lands at the
// quietest frame inside [pos+minFrames, pos+maxFrames). Deterministic for
// a given energy profile.
func planCuts(energies []float64, minFrames, maxFrames int) []int {
	if minFrames < 1 {
		minFrames = 1
	}
	if maxFrames <= minFrames {
		maxFrames = minFrames + 1
	}

	var cuts []int
	pos := 0
	for len(energies)-pos > maxFrames {
		lo := pos + minFrames
		hi := min(pos+maxFrames, len(energies))
		best := lo
		for f := lo; f < hi; f++ {
			if energies[f] < energies[best] {
				best = f
			}
		}
		cuts = append(cuts, best)
		pos = best
	}
	return cuts
}
