package scene

import (
	"fmt"
	"strconv"
	"strings"
)

// Position places subtitle text vertically within the frame.
type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

// Descriptor is a fully defaulted project description.
type Descriptor struct {
	Scenes []Scene
	BGM    string
	Global Global
}

// Scene is one visual segment backed by a still image or a short clip.
type Scene struct {
	Image    string
	TTS      string
	SFX      string
	Duration float64
	Subtitle *Subtitle
}

// Subtitle is text overlaid for the duration of its scene. A zero FontSize
// means the renderer default.
type Subtitle struct {
	Text     string
	FontSize int
	Color    string
	Position Position
}

// Global holds project-wide mixing and output settings.
type Global struct {
	Resolution            Resolution
	BackgroundMusicVolume float64
	VoiceVolume           float64
}

// Resolution is the output frame size in pixels.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution accepts "1280x720" (also with "X" or "*" as separator).
func ParseResolution(value string) (Resolution, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	sep := strings.IndexAny(value, "x*")
	if sep <= 0 || sep == len(value)-1 {
		return Resolution{}, fmt.Errorf("resolution %q: expected WIDTHxHEIGHT", value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(value[:sep]))
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: width: %w", value, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(value[sep+1:]))
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: height: %w", value, err)
	}
	return Resolution{Width: width, Height: height}, nil
}

// TotalDuration sums the declared scene durations.
func (d Descriptor) TotalDuration() float64 {
	var total float64
	for _, s := range d.Scenes {
		total += s.Duration
	}
	return total
}

// HasSubtitle reports whether the scene carries non-blank subtitle text.
func (s Scene) HasSubtitle() bool {
	return s.Subtitle != nil && strings.TrimSpace(s.Subtitle.Text) != ""
}
