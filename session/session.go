// Package session holds the mutable scene collection behind one user's
// editing session.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"storybook/story"
)

var (
	// ErrSceneNotFound is returned for an index outside 1..n.
	ErrSceneNotFound = errors.New("session: scene not found")

	// ErrInvalidScenes is returned by ReplaceAll when the new collection does
	// not have contiguous indices 1..n or is too large.
	ErrInvalidScenes = errors.New("session: invalid scene collection")

	// ErrReplaced is returned by SetImageIfCurrent when the collection was
	// replaced after the caller read it.
	ErrReplaced = errors.New("session: scenes were replaced")
)

// Session is one ordered scene collection. Each mutation is atomic with
// respect to the scene it touches; reads return deep copies.
type Session struct {
	mu        sync.RWMutex
	id        string
	scenes    []story.Scene
	version   uint64
	epoch     uint64
	createdAt time.Time
	updatedAt time.Time
}

// New returns an empty session.
func New(id string) *Session {
	now := time.Now()
	return &Session{id: id, createdAt: now, updatedAt: now}
}

// ID returns the identifier the session was created with.
func (s *Session) ID() string {
	return s.id
}

// ReplaceAll swaps in a whole new scene collection. On error the previous
// collection is kept.
func (s *Session) ReplaceAll(scenes []story.Scene) error {
	if err := ValidateScenes(scenes); err != nil {
		return err
	}
	cloned := story.CloneScenes(scenes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = cloned
	s.epoch++
	s.touch()
	return nil
}

// SetPrompt overwrites the image prompt of one scene. Title, text and image
// are left untouched.
func (s *Session) SetPrompt(index int, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.sceneLocked(index)
	if err != nil {
		return err
	}
	sc.ImagePrompt = prompt
	s.touch()
	return nil
}

// SetImage overwrites the image of one scene. A nil image clears it.
func (s *Session) SetImage(index int, image []byte) error {
	var cp []byte
	if image != nil {
		cp = append(make([]byte, 0, len(image)), image...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.sceneLocked(index)
	if err != nil {
		return err
	}
	sc.Image = cp
	s.touch()
	return nil
}

// SetImageIfCurrent is SetImage guarded by the epoch the caller read
// before a long acquisition. It fails with ErrReplaced instead of writing
// an image into a different story.
func (s *Session) SetImageIfCurrent(epoch uint64, index int, image []byte) error {
	var cp []byte
	if image != nil {
		cp = append(make([]byte, 0, len(image)), image...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return fmt.Errorf("%w: epoch %d, now %d", ErrReplaced, epoch, s.epoch)
	}
	sc, err := s.sceneLocked(index)
	if err != nil {
		return err
	}
	sc.Image = cp
	s.touch()
	return nil
}

// Scenes returns a deep copy of the collection in index order.
func (s *Session) Scenes() []story.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return story.CloneScenes(s.scenes)
}

// Scene returns a copy of one scene.
func (s *Session) Scene(index int) (story.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 1 || index > len(s.scenes) {
		return story.Scene{}, fmt.Errorf("%w: index %d of %d", ErrSceneNotFound, index, len(s.scenes))
	}
	return s.scenes[index-1].Clone(), nil
}

// Len returns the number of scenes.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scenes)
}

// Version increases on every successful mutation.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Epoch increases on every ReplaceAll. Prompt and image edits leave it
// unchanged.
func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Snapshot returns a deep copy of the scenes together with the epoch they
// belong to.
func (s *Session) Snapshot() ([]story.Scene, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return story.CloneScenes(s.scenes), s.epoch
}

// UpdatedAt is the time of the last successful mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// CreatedAt is when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) sceneLocked(index int) (*story.Scene, error) {
	if index < 1 || index > len(s.scenes) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrSceneNotFound, index, len(s.scenes))
	}
	// Indices are 1..n, so position index-1 always holds scene index.
	return &s.scenes[index-1], nil
}

func (s *Session) touch() {
	s.version++
	s.updatedAt = time.Now()
}

// ValidateScenes checks that scenes form a complete story: between one and
// story.MaxSceneCount entries indexed 1..n in order.
func ValidateScenes(scenes []story.Scene) error {
	if len(scenes) == 0 {
		return fmt.Errorf("%w: no scenes", ErrInvalidScenes)
	}
	if len(scenes) > story.MaxSceneCount {
		return fmt.Errorf("%w: %d scenes exceeds maximum %d", ErrInvalidScenes, len(scenes), story.MaxSceneCount)
	}
	for i, sc := range scenes {
		if sc.Index != i+1 {
			return fmt.Errorf("%w: position %d has index %d, want %d", ErrInvalidScenes, i, sc.Index, i+1)
		}
	}
	return nil
}
