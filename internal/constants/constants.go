// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultAcceptThreshold is the Euclidean distance below which a face is
	// accepted as a gallery identity
	DefaultAcceptThreshold = 0.6

	// DefaultLookalikeDistance is the distance under which a newly enrolled
	// face is reported as resembling another identity
	DefaultLookalikeDistance = 0.5

	// DefaultEmbeddingDim is the face embedding size of the default model
	DefaultEmbeddingDim = 512
)

// Round timing constants
const (
	// DefaultRoundDuration is how long each round captures frames
	DefaultRoundDuration = 20 * time.Second

	// DefaultRestInterval is the pause between rounds
	DefaultRestInterval = 10 * time.Second

	// DefaultNotifyDelay is the wait before a roster is sent
	DefaultNotifyDelay = 20 * time.Second

	// NotifyShutdownTimeout bounds how long shutdown waits for queued rosters
	NotifyShutdownTimeout = 30 * time.Second

	// DefaultFrameInterval is the polling interval for snapshot and directory sources
	DefaultFrameInterval = 500 * time.Millisecond
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) of frames sent
	// to the extractor
	MaxImageSize = 1920

	// DefaultFrameDedupThreshold disables near-duplicate frame filtering
	DefaultFrameDedupThreshold = -1
)

// Storage constants
const (
	// DefaultDatasetDir holds one directory of reference images per identity
	DefaultDatasetDir = "dataset"

	// DefaultAttendanceDir holds one record file per round
	DefaultAttendanceDir = "attendance"
)
