package source

import "strings"

// isNetworkSource reports whether address names a network stream rather
// than a local file, generalizing the teacher-adjacent pack's
// isNetworkSource check to the codec variants this package builds.
func isNetworkSource(address string) bool {
	return strings.HasPrefix(address, "rtsp://") ||
		strings.HasPrefix(address, "rtsps://") ||
		strings.HasPrefix(address, "http://") ||
		strings.HasPrefix(address, "https://")
}

// ffmpegVariant is one connect attempt: a codec hint and the ffmpeg
// arguments that realize it.
type ffmpegVariant struct {
	codec string
	args  []string
}

// connectVariants builds a three-tier fallback sequence: (1) the hinted
// codec over a low-latency, drop-oldest-equivalent pipeline, (2) the
// alternate codec in the same family, (3) a general-purpose fallback with
// minimal extra flags.
func connectVariants(address, codecHint string) []ffmpegVariant {
	primary, alternate := codecFamily(codecHint)

	lowLatency := func(codec string) []string {
		args := []string{"-fflags", "nobuffer", "-flags", "low_delay"}
		if isNetworkSource(address) {
			args = append(args, "-rtsp_transport", "tcp")
		}
		if codec != "" && codec != "auto" {
			args = append(args, "-vcodec", codec)
		}
		args = append(args,
			"-i", address,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "3",
			"-",
		)
		return args
	}

	general := func() []string {
		return []string{
			"-i", address,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}
	}

	return []ffmpegVariant{
		{codec: primary, args: lowLatency(primary)},
		{codec: alternate, args: lowLatency(alternate)},
		{codec: "auto", args: general()},
	}
}

// codecFamily resolves a hint ("auto", "h264", "h265"/"hevc") to a
// (primary, alternate) pair tried in order. An unrecognized or "auto" hint
// resolves to h264 first and hevc second; the stream is not probed for its
// codec.
func codecFamily(hint string) (primary, alternate string) {
	switch strings.ToLower(hint) {
	case "h265", "hevc":
		return "hevc", "h264"
	case "h264":
		return "h264", "hevc"
	default:
		return "h264", "hevc"
	}
}
