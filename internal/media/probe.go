package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errNoMovieHeader = errors.New("mp4 movie header not found")

// MP4Duration reads the presentation length from the moov/mvhd box.
// The result is rounded up to whole seconds.
func MP4Duration(data []byte) (int, error) {
	moov, ok := findBox(data, "moov")
	if !ok {
		return 0, errNoMovieHeader
	}
	mvhd, ok := findBox(moov, "mvhd")
	if !ok {
		return 0, errNoMovieHeader
	}
	if len(mvhd) < 4 {
		return 0, fmt.Errorf("mvhd box truncated")
	}

	var timescale uint32
	var duration uint64
	switch version := mvhd[0]; version {
	case 0:
		// version/flags(4) creation(4) modification(4) timescale(4) duration(4)
		if len(mvhd) < 20 {
			return 0, fmt.Errorf("mvhd box truncated")
		}
		timescale = binary.BigEndian.Uint32(mvhd[12:16])
		duration = uint64(binary.BigEndian.Uint32(mvhd[16:20]))
	case 1:
		// version/flags(4) creation(8) modification(8) timescale(4) duration(8)
		if len(mvhd) < 32 {
			return 0, fmt.Errorf("mvhd box truncated")
		}
		timescale = binary.BigEndian.Uint32(mvhd[20:24])
		duration = binary.BigEndian.Uint64(mvhd[24:32])
	default:
		return 0, fmt.Errorf("unknown mvhd version %d", version)
	}
	if timescale == 0 {
		return 0, fmt.Errorf("mvhd timescale is zero")
	}

	return int(math.Ceil(float64(duration) / float64(timescale))), nil
}

// findBox scans sibling boxes in data and returns the payload of the first box of the given type.
func findBox(data []byte, boxType string) ([]byte, bool) {
	for offset := 0; offset+8 <= len(data); {
		size := uint64(binary.BigEndian.Uint32(data[offset : offset+4]))
		typ := string(data[offset+4 : offset+8])
		header := uint64(8)

		switch size {
		case 0:
			size = uint64(len(data) - offset)
		case 1:
			if offset+16 > len(data) {
				return nil, false
			}
			size = binary.BigEndian.Uint64(data[offset+8 : offset+16])
			header = 16
		}
		if size < header || uint64(offset)+size > uint64(len(data)) {
			return nil, false
		}

		if typ == boxType {
			return data[uint64(offset)+header : uint64(offset)+size], true
		}
		offset += int(size)
	}
	return nil, false
}
