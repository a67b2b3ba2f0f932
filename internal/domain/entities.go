package domain

import "time"

// SlideshowConfig is the remote configuration document stored at a
// well-known path in the user's drive root.
type SlideshowConfig struct {
	Directories []string `json:"directories"`
	Interval    int      `json:"interval"` // seconds between slides
}

// MinInterval is the floor applied to configured slide intervals.
const MinInterval = 10 * time.Second

// SlideInterval returns the configured rotation interval clamped to a
// safe minimum. Missing or non-positive values fall back to MinInterval.
func (c SlideshowConfig) SlideInterval() time.Duration {
	if c.Interval <= 0 {
		return MinInterval
	}
	d := time.Duration(c.Interval) * time.Second
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// ImageRef identifies an image found during remote enumeration.
type ImageRef struct {
	ID           string    // Drive item ID, unique per drive
	Name         string    // File name for logging and extension sniffing
	Path         string    // Remote path of the containing directory
	Size         int64     // Size in bytes
	ETag         string    // Changes whenever the content changes
	LastModified time.Time // Server-side modification time
}

// CachedImage is a locally downloaded image available for display.
type CachedImage struct {
	ID         string    // Remote item ID (cache key)
	Name       string    // Original remote file name, for captions
	LocalPath  string    // Absolute path of the cached file
	Size       int64     // Size in bytes
	ETag       string    // ETag of the downloaded content
	LastAccess time.Time // Updated when the image is displayed
}

// Snapshot is an immutable, internally consistent view of the cache as of
// one completed sync cycle. The presentation loop only ever reads
// snapshots; it never observes a partially updated set.
type Snapshot struct {
	Images   []CachedImage
	Interval time.Duration // Slide interval from the config in effect
	SyncedAt time.Time
}

// Empty reports whether the snapshot contains no displayable images.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Images) == 0
}

// DirectoryResult is the tagged outcome of enumerating one configured
// directory. A failed directory is skipped for the cycle without aborting
// the others.
type DirectoryResult struct {
	Directory string
	Images    []ImageRef
	Err       error
}

// AuthEventKind distinguishes auth notifications sent to the UI.
type AuthEventKind int

const (
	// AuthEventCodeReady carries the verification URL and user code the
	// user must enter on a second device.
	AuthEventCodeReady AuthEventKind = iota
	// AuthEventCompleted signals that the handshake finished and syncing
	// can proceed.
	AuthEventCompleted
)

// AuthEvent notifies the presentation loop about device-flow progress.
type AuthEvent struct {
	Kind            AuthEventKind
	VerificationURL string
	UserCode        string
}
