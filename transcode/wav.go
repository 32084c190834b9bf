package transcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// decodeWAV reads a PCM WAV stream and downmixes it to mono float64 samples.
func decodeWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid PCM wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, errors.New("wav file has no format chunk")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	pcm := downmix(buf, channels, bitDepth)
	rate := buf.Format.SampleRate

	return &AudioData{
		PCM:        pcm,
		SampleRate: rate,
		Channels:   1,
		Duration:   samplesDuration(len(pcm), rate),
	}, nil
}

// downmix averages interleaved channels and scales integers to [-1, 1].
func downmix(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		// 8-bit wav is unsigned
		scale = 128
	}

	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			v := float64(buf.Data[i*channels+c])
			if bitDepth == 8 {
				v -= 128
			}
			sum += v
		}
		pcm[i] = sum / float64(channels) / scale
	}
	return pcm
}

// WriteWAV encodes mono samples in [-1, 1] as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(s * 32767)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	return enc.Close()
}
