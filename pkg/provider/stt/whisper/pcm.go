package whisper

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/nclamvn/teacherAI/pkg/provider/stt"
)

// silenceRMS is the energy, in 16-bit sample units, below which a clip is
// treated as silence. Full scale is 32767.
const silenceRMS = 300.0

func isPCM(contentType string) bool {
	mt, _, _ := strings.Cut(contentType, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	return mt == stt.ContentTypePCM || mt == "audio/l16"
}

// pcmClip is mono 16-bit signed little-endian audio.
type pcmClip struct {
	samples []byte
	rate    int
}

func (c pcmClip) frames() int { return len(c.samples) / 2 }

func (c pcmClip) duration() time.Duration {
	if c.rate <= 0 {
		return 0
	}
	return time.Duration(c.frames()) * time.Second / time.Duration(c.rate)
}

// rms is the root-mean-square amplitude of the clip.
func (c pcmClip) rms() float64 {
	n := c.frames()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(c.samples[2*i:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func (c pcmClip) silent() bool { return c.rms() < silenceRMS }

// wavHeader is the canonical 44-byte RIFF header of a PCM WAV file.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// wav wraps the clip in a WAV container.
func (c pcmClip) wav() []byte {
	size := uint32(len(c.samples))
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + size,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		Format:        1,
		Channels:      1,
		SampleRate:    uint32(c.rate),
		ByteRate:      uint32(c.rate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      size,
	}
	var buf bytes.Buffer
	buf.Grow(44 + len(c.samples))
	_ = binary.Write(&buf, binary.LittleEndian, h)
	buf.Write(c.samples)
	return buf.Bytes()
}
