// Package codec converts entry text to the compressed representation kept in
// the database and back. The format is a single zstd frame.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"

	"github.com/dmitrijs2005/pastekeeper/internal/common"
)

// maxDecodedMemory caps the window a single frame may request from the decoder.
const maxDecodedMemory = 64 << 20

// Compress encodes text as a zstd frame. The text is streamed through the
// encoder rather than copied into an intermediate buffer.
func Compress(text string) ([]byte, error) {
	var buf bytes.Buffer

	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorCompression, err)
	}

	if _, err := io.Copy(enc, strings.NewReader(text)); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrorCompression, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorCompression, err)
	}

	return buf.Bytes(), nil
}

// Decompress decodes a frame produced by Compress. Corrupt input, truncated
// frames and non UTF-8 output all fail with common.ErrorCompression.
func Decompress(data []byte) (string, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecodedMemory),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorCompression, err)
	}
	defer dec.Close()

	var sb strings.Builder
	if _, err := io.Copy(&sb, dec); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorCompression, err)
	}

	text := sb.String()
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: decoded data is not valid utf-8", common.ErrorCompression)
	}

	return text, nil
}
