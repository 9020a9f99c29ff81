// Package ffmpeg shells out to an ffmpeg binary on PATH for audio
// transcoding. Its absence is not fatal; callers keep raw audio when
// transcoding is unavailable or fails.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Available reports whether an ffmpeg binary can be found on PATH.
func Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// TranscodeToOpus converts raw audio bytes (any container ffmpeg can probe)
// to Opus in an Ogg container at 32 kbps VBR, 24 kHz mono.
func TranscodeToOpus(ctx context.Context, raw []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-c:a", "libopus",
		"-b:a", "32k",
		"-vbr", "on",
		"-ar", "24000",
		"-ac", "1",
		"-f", "ogg",
		"pipe:1",
	)

	var out, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg transcode: %w (%s)", err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg transcode produced no output")
	}
	return out.Bytes(), nil
}
