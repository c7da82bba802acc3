package db

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
)

// frameHeaderSize is a little-endian uint32 length plus a CRC-32 of the body.
const frameHeaderSize = 8

func encodeFrame(batch WriteBatch) ([]byte, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encoding WAL entry: %w", err)
	}
	frame := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(body))
	copy(frame[frameHeaderSize:], body)
	return frame, nil
}

// decodeFrames returns every intact batch in data and the offset just past
// the last one. A torn or corrupted tail ends the scan.
func decodeFrames(data []byte) ([]WriteBatch, int) {
	var batches []WriteBatch
	offset := 0
	for len(data)-offset >= frameHeaderSize {
		size := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		sum := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		start := offset + frameHeaderSize
		if size > len(data)-start {
			break
		}
		body := data[start : start+size]
		if crc32.ChecksumIEEE(body) != sum {
			break
		}
		var batch WriteBatch
		if err := json.Unmarshal(body, &batch); err != nil {
			break
		}
		batches = append(batches, batch)
		offset = start + size
	}
	return batches, offset
}
