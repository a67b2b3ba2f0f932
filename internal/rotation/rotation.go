// Package rotation decides the order cached images are displayed in.
package rotation

import (
	"math/rand"
	"time"

	"github.com/driveshow/driveshow/internal/domain"
)

// Rotation walks a shuffled permutation of the current snapshot's
// images, reshuffling whenever the permutation is exhausted or the
// snapshot changes. The same image is never shown twice in a row while
// more than one image is available.
type Rotation struct {
	rng    *rand.Rand
	images []domain.CachedImage
	order  []int
	pos    int
	lastID string
}

// New creates an empty rotation.
func New() *Rotation {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed creates a rotation with a deterministic shuffle, for tests.
func NewWithSeed(seed int64) *Rotation {
	return &Rotation{rng: rand.New(rand.NewSource(seed))}
}

// SetImages replaces the image set, e.g. after a new snapshot is
// published. The walk restarts on a fresh permutation.
func (r *Rotation) SetImages(images []domain.CachedImage) {
	r.images = images
	r.reshuffle()
}

// Len returns the number of images in the rotation.
func (r *Rotation) Len() int {
	return len(r.images)
}

// Next advances to the next image. It returns false when the rotation is
// empty.
func (r *Rotation) Next() (domain.CachedImage, bool) {
	if len(r.images) == 0 {
		return domain.CachedImage{}, false
	}
	if r.pos >= len(r.order) {
		r.reshuffle()
	}
	img := r.images[r.order[r.pos]]
	r.pos++
	r.lastID = img.ID
	return img, true
}

// reshuffle draws a new permutation. The first slot is nudged when it
// would immediately repeat the previously shown image.
func (r *Rotation) reshuffle() {
	r.pos = 0
	if len(r.order) != len(r.images) {
		r.order = make([]int, len(r.images))
	}
	for i := range r.order {
		r.order[i] = i
	}
	r.rng.Shuffle(len(r.order), func(i, j int) {
		r.order[i], r.order[j] = r.order[j], r.order[i]
	})
	if len(r.order) > 1 && r.images[r.order[0]].ID == r.lastID {
		other := 1 + r.rng.Intn(len(r.order)-1)
		r.order[0], r.order[other] = r.order[other], r.order[0]
	}
}
