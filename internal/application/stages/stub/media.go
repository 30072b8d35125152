package stub

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

// Placeholder object dimensions and durations. Small enough that a full run
// writes a few hundred kilobytes, large enough that clients render them.
const (
	imageWidth  = 360
	imageHeight = 640
	thumbWidth  = 180
	thumbHeight = 320

	audioSampleRate = 8000
	audioSeconds    = 1
)

// PlaceholderImage renders a 9:16 PNG whose fill color derives from the
// prompt, so distinct prompts produce visibly distinct placeholders.
func PlaceholderImage(prompt string) []byte {
	return renderPNG(prompt, imageWidth, imageHeight)
}

// PlaceholderThumbnail renders the thumbnail-sized variant.
func PlaceholderThumbnail(prompt string) []byte {
	return renderPNG(prompt, thumbWidth, thumbHeight)
}

// PlaceholderAudio renders one second of a quiet sine tone as 16-bit PCM
// WAV. The tone frequency derives from the prompt.
func PlaceholderAudio(prompt string) []byte {
	samples := audioSampleRate * audioSeconds
	freq := 220.0 + float64(seedValue(prompt)%440)

	buf := bytes.NewBuffer(make([]byte, 0, 44+samples*2))
	writeWAVHeader(buf, samples)
	for i := 0; i < samples; i++ {
		v := int16(3000 * math.Sin(2*math.Pi*freq*float64(i)/audioSampleRate))
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// PlaceholderVideo emits a minimal MP4 container: an ftyp box and an mdat
// box carrying the title. Probes classify it as video/mp4.
func PlaceholderVideo(title string) []byte {
	var buf bytes.Buffer
	writeBox(&buf, "ftyp", []byte("isom\x00\x00\x02\x00isomiso2mp41"))
	writeBox(&buf, "mdat", []byte(title))
	return buf.Bytes()
}

func renderPNG(seed string, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: seedColor(seed)}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func seedColor(seed string) color.RGBA {
	v := seedValue(seed)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func seedValue(seed string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return h.Sum32()
}

func writeWAVHeader(buf *bytes.Buffer, samples int) {
	dataSize := samples * 2
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))  // mono
	binary.Write(buf, binary.LittleEndian, uint32(audioSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(audioSampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
}

func writeBox(buf *bytes.Buffer, boxType string, payload []byte) {
	binary.Write(buf, binary.BigEndian, uint32(8+len(payload)))
	buf.WriteString(boxType)
	buf.Write(payload)
}
