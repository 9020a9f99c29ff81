// Package edgetts streams synthesized speech from the Edge read-aloud
// websocket endpoint. One Engine is shared process-wide; Synthesize opens a
// fresh connection per request, which is what the upstream expects.
package edgetts

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wssURL       = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	DefaultVoice = "zh-CN-XiaoxiaoNeural"
)

type Engine struct {
	voice  string
	dialer *websocket.Dialer
}

func NewEngine(voice string) *Engine {
	if voice == "" {
		voice = DefaultVoice
	}
	return &Engine{
		voice: voice,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

func (e *Engine) Voice() string { return e.voice }

// Synthesize streams audio for the given text and returns the collected
// bytes. voice overrides the engine default when non-empty. The audio
// container matches the requested output format (mp3); transcoding to Opus
// is the caller's concern.
func (e *Engine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}
	if voice == "" {
		voice = e.voice
	}

	connURL := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s",
		wssURL, trustedToken, connectionID())

	header := http.Header{}
	header.Set("Origin", "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold")
	header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	conn, resp, err := e.dialer.DialContext(ctx, connURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("edge-tts dial failed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("edge-tts dial failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(speechConfig())); err != nil {
		return nil, fmt.Errorf("edge-tts config write: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMessage(text, voice))); err != nil {
		return nil, fmt.Errorf("edge-tts ssml write: %w", err)
	}

	var audio []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("edge-tts read: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				if len(audio) == 0 {
					return nil, errors.New("edge-tts returned no audio")
				}
				return audio, nil
			}
		case websocket.BinaryMessage:
			chunk, ok := audioChunk(data)
			if ok {
				audio = append(audio, chunk...)
			}
		}
	}
}

// audioChunk strips the binary frame header: a 2-byte big-endian header
// length, the text header, then the payload. Only Path:audio frames carry
// audio bytes.
func audioChunk(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+headerLen {
		return nil, false
	}
	header := string(data[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil, false
	}
	return data[2+headerLen:], true
}

func speechConfig() string {
	return "X-Timestamp:" + timestamp() + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + outputFormat + `"}}}}`
}

func ssmlMessage(text, voice string) string {
	ssml := fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='zh-CN'>`+
			`<voice name='%s'>%s</voice></speak>`,
		voice, escapeSSML(text))
	return "X-RequestId:" + requestID() + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + timestamp() + "\r\n" +
		"Path:ssml\r\n\r\n" + ssml
}

func escapeSSML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func requestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func connectionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
