package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

var (
	ErrMalformedDescriptor = fmt.Errorf("%w: malformed descriptor", services.ErrValidation)
	ErrEmptyDescriptor     = fmt.Errorf("%w: descriptor has no scenes", services.ErrValidation)
)

// Format identifies the descriptor encoding.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Defaults are applied once at ingestion to fields the document omits.
type Defaults struct {
	SceneDuration float64
	BGMVolume     float64
	VoiceVolume   float64
	Resolution    Resolution
	FontColor     string
}

// DefaultsFromConfig builds ingestion defaults from the [composition] section.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	c := cfg.Composition
	return Defaults{
		SceneDuration: c.SceneDuration,
		BGMVolume:     c.BGMVolume,
		VoiceVolume:   c.VoiceVolume,
		Resolution:    Resolution{Width: c.Width, Height: c.Height},
		FontColor:     c.FontColor,
	}
}

// StandardDefaults mirrors the documented descriptor defaults.
func StandardDefaults() Defaults {
	return Defaults{
		SceneDuration: 3,
		BGMVolume:     0.3,
		VoiceVolume:   1.0,
		Resolution:    Resolution{Width: 1280, Height: 720},
		FontColor:     "white",
	}
}

type rawDescriptor struct {
	Scenes []rawScene `json:"scenes" yaml:"scenes"`
	BGM    string     `json:"bgm" yaml:"bgm"`
	Global *rawGlobal `json:"global" yaml:"global"`
}

type rawScene struct {
	Image    string       `json:"image" yaml:"image"`
	TTS      string       `json:"tts" yaml:"tts"`
	SFX      string       `json:"sfx" yaml:"sfx"`
	Duration *float64     `json:"duration" yaml:"duration"`
	Subtitle *rawSubtitle `json:"subtitle" yaml:"subtitle"`
}

type rawSubtitle struct {
	Text     string `json:"text" yaml:"text"`
	FontSize int    `json:"fontSize" yaml:"fontSize"`
	Color    string `json:"color" yaml:"color"`
	Position string `json:"position" yaml:"position"`
}

type rawGlobal struct {
	Resolution            *rawResolution `json:"resolution" yaml:"resolution"`
	BackgroundMusicVolume *float64       `json:"backgroundMusicVolume" yaml:"backgroundMusicVolume"`
	VoiceVolume           *float64       `json:"voiceVolume" yaml:"voiceVolume"`
}

// rawResolution accepts either "1280x720" or {width, height}.
type rawResolution struct {
	Resolution
}

func (r *rawResolution) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		parsed, err := ParseResolution(text)
		if err != nil {
			return err
		}
		r.Resolution = parsed
		return nil
	}
	var obj struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&obj); err != nil {
		return fmt.Errorf("resolution: %w", err)
	}
	r.Resolution = Resolution{Width: obj.Width, Height: obj.Height}
	return nil
}

func (r *rawResolution) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseResolution(node.Value)
		if err != nil {
			return err
		}
		r.Resolution = parsed
		return nil
	}
	var obj struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	}
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("resolution: %w", err)
	}
	r.Resolution = Resolution{Width: obj.Width, Height: obj.Height}
	return nil
}

// Parse decodes a descriptor document and applies defaults. FormatAuto picks
// JSON when the first non-space byte is '{' and YAML otherwise.
func Parse(data []byte, format Format, defaults Defaults) (Descriptor, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Descriptor{}, fmt.Errorf("%w: document is empty", ErrMalformedDescriptor)
	}
	if format == FormatAuto {
		format = FormatYAML
		if trimmed[0] == '{' {
			format = FormatJSON
		}
	}

	var raw rawDescriptor
	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&raw); err != nil {
			return Descriptor{}, fmt.Errorf("%w: %w", ErrMalformedDescriptor, err)
		}
		if decoder.More() {
			return Descriptor{}, fmt.Errorf("%w: trailing data after document", ErrMalformedDescriptor)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(trimmed))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return Descriptor{}, fmt.Errorf("%w: %w", ErrMalformedDescriptor, err)
		}
	default:
		return Descriptor{}, fmt.Errorf("%w: unsupported format %q", ErrMalformedDescriptor, format)
	}

	return raw.build(defaults)
}

// ParseFile reads and parses a descriptor, choosing the format by extension.
func ParseFile(path string, defaults Defaults) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	format := FormatAuto
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return Parse(data, format, defaults)
}

func (raw rawDescriptor) build(defaults Defaults) (Descriptor, error) {
	if len(raw.Scenes) == 0 {
		return Descriptor{}, ErrEmptyDescriptor
	}

	desc := Descriptor{
		Scenes: make([]Scene, 0, len(raw.Scenes)),
		BGM:    strings.TrimSpace(raw.BGM),
		Global: Global{
			Resolution:            defaults.Resolution,
			BackgroundMusicVolume: defaults.BGMVolume,
			VoiceVolume:           defaults.VoiceVolume,
		},
	}

	if g := raw.Global; g != nil {
		if g.Resolution != nil {
			res := g.Resolution.Resolution
			if res.Width <= 0 || res.Height <= 0 {
				return Descriptor{}, fmt.Errorf("%w: global.resolution must be positive, got %s", ErrMalformedDescriptor, res)
			}
			desc.Global.Resolution = res
		}
		if g.BackgroundMusicVolume != nil {
			vol := *g.BackgroundMusicVolume
			if vol < 0 || vol > 1 {
				return Descriptor{}, fmt.Errorf("%w: global.backgroundMusicVolume must be within 0..1, got %g", ErrMalformedDescriptor, vol)
			}
			desc.Global.BackgroundMusicVolume = vol
		}
		if g.VoiceVolume != nil {
			vol := *g.VoiceVolume
			if vol < 0 {
				return Descriptor{}, fmt.Errorf("%w: global.voiceVolume must not be negative, got %g", ErrMalformedDescriptor, vol)
			}
			desc.Global.VoiceVolume = vol
		}
	}

	for i, rs := range raw.Scenes {
		image := strings.TrimSpace(rs.Image)
		if image == "" {
			return Descriptor{}, fmt.Errorf("%w: scenes[%d].image is required", ErrMalformedDescriptor, i)
		}
		s := Scene{
			Image:    image,
			TTS:      strings.TrimSpace(rs.TTS),
			SFX:      strings.TrimSpace(rs.SFX),
			Duration: defaults.SceneDuration,
		}
		// Explicit non-positive durations are kept; project creation rejects them.
		if rs.Duration != nil {
			s.Duration = *rs.Duration
		}
		if rs.Subtitle != nil {
			sub, err := rs.Subtitle.build(i, defaults)
			if err != nil {
				return Descriptor{}, err
			}
			s.Subtitle = sub
		}
		desc.Scenes = append(desc.Scenes, s)
	}
	return desc, nil
}

func (rs rawSubtitle) build(index int, defaults Defaults) (*Subtitle, error) {
	text := norm.NFC.String(strings.TrimSpace(rs.Text))
	if text == "" {
		return nil, nil
	}
	if rs.FontSize < 0 {
		return nil, fmt.Errorf("%w: scenes[%d].subtitle.fontSize must not be negative", ErrMalformedDescriptor, index)
	}
	sub := &Subtitle{
		Text:     text,
		FontSize: rs.FontSize,
		Color:    strings.TrimSpace(rs.Color),
		Position: PositionBottom,
	}
	if sub.Color == "" {
		sub.Color = defaults.FontColor
	}
	switch Position(strings.ToLower(strings.TrimSpace(rs.Position))) {
	case "", PositionBottom:
	case PositionTop:
		sub.Position = PositionTop
	case PositionCenter, "middle":
		sub.Position = PositionCenter
	default:
		return nil, fmt.Errorf("%w: scenes[%d].subtitle.position %q is not top, center, or bottom", ErrMalformedDescriptor, index, rs.Position)
	}
	return sub, nil
}
