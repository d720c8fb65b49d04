package source

// extractJPEGFrame scans buf for one complete JPEG image delimited by the
// FFD8 start-of-image and FFD9 end-of-image markers, the way ffmpeg's
// image2pipe/mjpeg output concatenates frames with no other framing. It
// returns the extracted frame bytes and advances buf past them, or returns
// nil if no complete frame is present yet. In that case bytes before the
// start marker are discarded from buf (keeping a trailing 0xFF when no start
// marker was found); an incomplete frame is kept from its start marker on.
func extractJPEGFrame(buf *[]byte) []byte {
	data := *buf
	if len(data) < 4 {
		return nil
	}

	startIdx := -1
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1] == 0xD8 {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		// no start marker at all yet: drop everything except a possible
		// trailing 0xFF that might be half of a marker split across reads.
		if data[len(data)-1] == 0xFF {
			*buf = data[len(data)-1:]
		} else {
			*buf = data[:0]
		}
		return nil
	}

	endIdx := -1
	for i := startIdx + 2; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1] == 0xD9 {
			endIdx = i + 2
			break
		}
	}
	if endIdx == -1 {
		// incomplete frame: keep everything from the start marker onward.
		*buf = data[startIdx:]
		return nil
	}

	out := make([]byte, endIdx-startIdx)
	copy(out, data[startIdx:endIdx])
	*buf = data[endIdx:]
	return out
}
