package story

// Scene is one narrative unit of a story. Index, Title and Text are fixed at
// synthesis; ImagePrompt and Image change independently afterwards and may
// be out of sync with each other.
type Scene struct {
	Index       int
	Title       string
	Text        string
	ImagePrompt string

	// Image holds the raw illustration bytes. nil means no image has been
	// acquired yet; a non-nil empty slice is a present but unusable image.
	Image []byte
}

// HasImage reports whether an image payload is present.
func (s Scene) HasImage() bool {
	return s.Image != nil
}

// Clone returns a deep copy so callers never share the image buffer.
func (s Scene) Clone() Scene {
	out := s
	if s.Image != nil {
		out.Image = append(make([]byte, 0, len(s.Image)), s.Image...)
	}
	return out
}

// CloneScenes deep-copies a scene slice.
func CloneScenes(scenes []Scene) []Scene {
	if scenes == nil {
		return nil
	}
	out := make([]Scene, len(scenes))
	for i, sc := range scenes {
		out[i] = sc.Clone()
	}
	return out
}

// Roles are the canonical scene titles in narrative order.
var Roles = [MaxSceneCount]string{
	"Opening",
	"Rising Trouble",
	"Turning Point",
	"The Peak",
	"Aftermath",
}
