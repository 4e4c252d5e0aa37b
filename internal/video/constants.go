package video

import "time"

// External tool contracts.
const (
	RecorderBinary = "rpicam-vid"
	SplicerBinary  = "ffmpeg"

	// SegmentPattern is the numeric filename pattern handed to the
	// recorder; SegmentPrefix is what ListSegments matches against.
	SegmentPattern = "seg_%010d.h264"
	SegmentPrefix  = "seg_"

	ConcatListName = "concat_list.txt"
)

const (
	// MinRetentionSeconds floors segment retention.
	MinRetentionSeconds = 10

	// GraceSeconds widens the selection window on both ends to absorb
	// filesystem-timestamp and segment-rotation jitter.
	GraceSeconds = 2

	// StopGrace bounds the wait for the recorder process to exit before
	// it is killed.
	StopGrace = 3 * time.Second

	// SpliceTimeout bounds a single external splicing or overlay call.
	SpliceTimeout = 2 * time.Minute
)
