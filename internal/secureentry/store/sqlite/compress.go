package sqlite

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
var (
	imageEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	imageDecoder, _ = zstd.NewReader(nil)
)

func compressImage(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return imageEncoder.EncodeAll(b, make([]byte, 0, len(b)/2))
}

func decompressImage(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	out, err := imageDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress face image: %w", err)
	}
	return out, nil
}
