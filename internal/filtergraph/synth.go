package filtergraph

import (
	"fmt"
	"strconv"
	"strings"

	"reelforge/internal/asset"
	"reelforge/internal/config"
	"reelforge/internal/scene"
	"reelforge/internal/services"
)

var (
	ErrInvalidSceneDuration = fmt.Errorf("%w: scene duration must be positive", services.ErrValidation)
	ErrMissingAsset         = fmt.Errorf("%w: asset has no resolved path", services.ErrValidation)
)

// Stream labels shared with the encoder invocation.
const (
	LabelVideo     = "video"
	LabelNarration = "narration"
	LabelVoice     = "voice"
	LabelBGM       = "bgm"
	LabelAudio     = "audio"
)

const (
	audioSampleRate    = 44100
	audioChannelLayout = "stereo"
)

// Options carries renderer settings that are not part of the descriptor.
type Options struct {
	FrameRate       int
	DefaultFontSize int
	MinFontSize     int
	MaxFontSize     int
	// FontFile is passed to drawtext when set; otherwise ffmpeg picks its
	// built-in default.
	FontFile string
}

// DefaultOptions returns the renderer defaults used when no config is loaded.
func DefaultOptions() Options {
	return Options{FrameRate: 25, DefaultFontSize: 36, MinFontSize: 12, MaxFontSize: 96}
}

// OptionsFromConfig builds renderer options from the loaded configuration.
// fontFile is the already resolved drawtext font, possibly empty.
func OptionsFromConfig(cfg *config.Config, fontFile string) Options {
	return Options{
		FrameRate:       cfg.FFmpeg.FrameRate,
		DefaultFontSize: cfg.Composition.DefaultFontSize,
		MinFontSize:     cfg.Composition.MinFontSize,
		MaxFontSize:     cfg.Composition.MaxFontSize,
		FontFile:        fontFile,
	}
}

// Input is one ffmpeg -i entry.
type Input struct {
	Index int
	Name  string
	Path  string
	// LoopedImage inputs are read with -loop 1 -t Duration.
	LoopedImage bool
	Duration    float64
}

// Plan is the complete synthesis result.
type Plan struct {
	Inputs        []Input
	Graph         Graph
	FilterComplex string
	VideoLabel    string
	AudioLabel    string
	TotalDuration float64
	Resolution    scene.Resolution
}

// HasAudio reports whether the plan maps an audio stream.
func (p Plan) HasAudio() bool {
	return p.AudioLabel != ""
}

// inputList is append-only. A repeated asset gets a new input each time, so
// an input stream is read by exactly one chain.
type inputList struct {
	items []Input
}

func (l *inputList) add(in Input) int {
	in.Index = len(l.items)
	l.items = append(l.items, in)
	return in.Index
}

// Synthesize builds the input list and filter graph for desc. paths maps
// every referenced asset name to its on-disk location.
func Synthesize(desc scene.Descriptor, paths map[string]string, opts Options) (Plan, error) {
	if len(desc.Scenes) == 0 {
		return Plan{}, scene.ErrEmptyDescriptor
	}
	for i, s := range desc.Scenes {
		if !(s.Duration > 0) {
			return Plan{}, fmt.Errorf("%w: scenes[%d] has duration %s", ErrInvalidSceneDuration, i, formatSeconds(s.Duration))
		}
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultOptions().FrameRate
	}
	res := desc.Global.Resolution
	if res.Width <= 0 || res.Height <= 0 {
		return Plan{}, fmt.Errorf("%w: resolution %s", scene.ErrMalformedDescriptor, res)
	}

	resolve := func(name string) (string, error) {
		path := strings.TrimSpace(paths[name])
		if path == "" {
			return "", fmt.Errorf("%w: %q", ErrMissingAsset, name)
		}
		return path, nil
	}

	// Inputs: one visual per scene, one narration per narrated scene, then
	// background music.
	var inputs inputList
	visual := make([]int, len(desc.Scenes))
	for i, s := range desc.Scenes {
		path, err := resolve(s.Image)
		if err != nil {
			return Plan{}, err
		}
		category, _ := asset.CategoryForName(s.Image)
		visual[i] = inputs.add(Input{
			Name:        s.Image,
			Path:        path,
			LoopedImage: category != asset.CategoryVideo,
			Duration:    s.Duration,
		})
	}
	var narration []int
	for _, s := range desc.Scenes {
		if s.TTS == "" {
			continue
		}
		path, err := resolve(s.TTS)
		if err != nil {
			return Plan{}, err
		}
		narration = append(narration, inputs.add(Input{Name: s.TTS, Path: path}))
	}
	bgm := -1
	if desc.BGM != "" {
		path, err := resolve(desc.BGM)
		if err != nil {
			return Plan{}, err
		}
		bgm = inputs.add(Input{Name: desc.BGM, Path: path})
	}

	var g Graph

	// Per-scene normalization to a common frame size, rate, and length.
	sceneLabels := make([]string, len(desc.Scenes))
	for i, s := range desc.Scenes {
		sceneLabels[i] = "v" + strconv.Itoa(i)
		g.Nodes = append(g.Nodes, Node{
			Inputs: []string{strconv.Itoa(visual[i]) + ":v"},
			Filters: []Filter{
				NewFilter("scale", Plain("", res.Width), Plain("", res.Height), Plain("force_original_aspect_ratio", "decrease")),
				NewFilter("pad", Plain("", res.Width), Plain("", res.Height), Plain("", "(ow-iw)/2"), Plain("", "(oh-ih)/2"), Plain("color", "black")),
				NewFilter("setsar", Plain("", 1)),
				NewFilter("fps", Plain("", opts.FrameRate)),
				NewFilter("trim", Plain("duration", s.Duration)),
				NewFilter("setpts", Plain("", "PTS-STARTPTS")),
			},
			Outputs: []string{sceneLabels[i]},
		})
	}

	g.Nodes = append(g.Nodes, Node{
		Inputs:  sceneLabels,
		Filters: []Filter{NewFilter("concat", Plain("n", len(sceneLabels)), Plain("v", 1), Plain("a", 0))},
		Outputs: []string{LabelVideo},
	})

	videoLabel := LabelVideo
	var start float64
	for i, s := range desc.Scenes {
		end := start + s.Duration
		if s.HasSubtitle() {
			next := "video_sub" + strconv.Itoa(i)
			g.Nodes = append(g.Nodes, Node{
				Inputs:  []string{videoLabel},
				Filters: []Filter{drawtext(*s.Subtitle, start, end, opts)},
				Outputs: []string{next},
			})
			videoLabel = next
		}
		start = end
	}
	total := start

	audioLabel := appendAudio(&g, narration, bgm, desc.Global)

	text, err := g.Render(len(inputs.items))
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Inputs:        inputs.items,
		Graph:         g,
		FilterComplex: text,
		VideoLabel:    videoLabel,
		AudioLabel:    audioLabel,
		TotalDuration: total,
		Resolution:    res,
	}, nil
}

func drawtext(sub scene.Subtitle, start, end float64, opts Options) Filter {
	size := ClampFontSize(sub.FontSize, opts.DefaultFontSize, opts.MinFontSize, opts.MaxFontSize)
	args := make([]Arg, 0, 10)
	if opts.FontFile != "" {
		args = append(args, Plain("fontfile", opts.FontFile))
	}
	color := sub.Color
	if color == "" {
		color = "white"
	}
	args = append(args,
		Text("text", sub.Text),
		Plain("fontsize", size),
		Plain("fontcolor", color),
		Plain("x", "(w-text_w)/2"),
		Expr("y", subtitleY(sub.Position)),
		Plain("box", 1),
		Plain("boxcolor", "black@0.5"),
		Plain("boxborderw", 10),
		Expr("enable", "gte(t,"+formatSeconds(start)+")*lt(t,"+formatSeconds(end)+")"),
	)
	return NewFilter("drawtext", args...)
}

func subtitleY(pos scene.Position) string {
	switch pos {
	case scene.PositionTop:
		return "h*0.08"
	case scene.PositionCenter:
		return "(h-text_h)/2"
	default:
		return "h-text_h-h*0.08"
	}
}

func appendAudio(g *Graph, narration []int, bgm int, global scene.Global) string {
	normalize := NewFilter("aformat",
		Plain("sample_rates", audioSampleRate),
		Plain("channel_layouts", audioChannelLayout))

	voice := ""
	if len(narration) > 0 {
		labels := make([]string, len(narration))
		for i, idx := range narration {
			labels[i] = "n" + strconv.Itoa(i)
			g.Nodes = append(g.Nodes, Node{
				Inputs:  []string{strconv.Itoa(idx) + ":a"},
				Filters: []Filter{normalize},
				Outputs: []string{labels[i]},
			})
		}
		g.Nodes = append(g.Nodes,
			Node{
				Inputs:  labels,
				Filters: []Filter{NewFilter("concat", Plain("n", len(labels)), Plain("v", 0), Plain("a", 1))},
				Outputs: []string{LabelNarration},
			},
			Node{
				Inputs:  []string{LabelNarration},
				Filters: []Filter{NewFilter("volume", Plain("", global.VoiceVolume))},
				Outputs: []string{LabelVoice},
			},
		)
		voice = LabelVoice
	}

	music := ""
	if bgm >= 0 {
		g.Nodes = append(g.Nodes, Node{
			Inputs:  []string{strconv.Itoa(bgm) + ":a"},
			Filters: []Filter{normalize, NewFilter("volume", Plain("", global.BackgroundMusicVolume))},
			Outputs: []string{LabelBGM},
		})
		music = LabelBGM
	}

	switch {
	case voice != "" && music != "":
		g.Nodes = append(g.Nodes, Node{
			Inputs:  []string{voice, music},
			Filters: []Filter{NewFilter("amix", Plain("inputs", 2), Plain("duration", "shortest"))},
			Outputs: []string{LabelAudio},
		})
		return LabelAudio
	case voice != "":
		return voice
	default:
		return music
	}
}
