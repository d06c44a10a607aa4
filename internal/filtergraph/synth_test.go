package filtergraph_test

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"reelforge/internal/filtergraph"
	"reelforge/internal/scene"
	"reelforge/internal/services"
)

func descriptor(scenes ...scene.Scene) scene.Descriptor {
	return scene.Descriptor{
		Scenes: scenes,
		Global: scene.Global{
			Resolution:            scene.Resolution{Width: 1280, Height: 720},
			BackgroundMusicVolume: 0.3,
			VoiceVolume:           1.0,
		},
	}
}

func pathsFor(names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = "/work/" + name
	}
	return out
}

func TestSynthesizeInputOrder(t *testing.T) {
	desc := descriptor(
		scene.Scene{Image: "img1.png", TTS: "tts1.mp3", Duration: 3},
		scene.Scene{Image: "img2.png", Duration: 3},
		scene.Scene{Image: "img3.png", TTS: "tts3.mp3", Duration: 3},
	)
	desc.BGM = "bgm.mp3"
	plan, err := filtergraph.Synthesize(desc, pathsFor("img1.png", "img2.png", "img3.png", "tts1.mp3", "tts3.mp3", "bgm.mp3"), filtergraph.DefaultOptions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := []string{"img1.png", "img2.png", "img3.png", "tts1.mp3", "tts3.mp3", "bgm.mp3"}
	if len(plan.Inputs) != len(want) {
		t.Fatalf("expected %d inputs, got %d", len(want), len(plan.Inputs))
	}
	for i, name := range want {
		in := plan.Inputs[i]
		if in.Index != i || in.Name != name {
			t.Fatalf("input %d = %+v, want %s", i, in, name)
		}
	}
	for _, in := range plan.Inputs[:3] {
		if !in.LoopedImage || in.Duration != 3 {
			t.Fatalf("expected looped image input, got %+v", in)
		}
	}
	for _, fragment := range []string{"[3:a]aformat", "[4:a]aformat", "[5:a]aformat"} {
		if !strings.Contains(plan.FilterComplex, fragment) {
			t.Fatalf("expected %q in graph %s", fragment, plan.FilterComplex)
		}
	}
	if plan.TotalDuration != 9 {
		t.Fatalf("expected total duration 9, got %v", plan.TotalDuration)
	}
}

func TestSynthesizeConcatOrder(t *testing.T) {
	desc := descriptor(
		scene.Scene{Image: "a.png", Duration: 2},
		scene.Scene{Image: "b.png", Duration: 2},
		scene.Scene{Image: "c.png", Duration: 2},
	)
	plan, err := filtergraph.Synthesize(desc, pathsFor("a.png", "b.png", "c.png"), filtergraph.DefaultOptions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	chains := strings.Split(plan.FilterComplex, ";")
	var concat string
	for _, chain := range chains {
		if strings.Contains(chain, "concat=") {
			if concat != "" {
				t.Fatalf("expected exactly one concat chain, got %q and %q", concat, chain)
			}
			concat = chain
		}
	}
	labels := regexp.MustCompile(`\[([^\]]+)\]`).FindAllStringSubmatch(concat, -1)
	var got []string
	for _, m := range labels {
		got = append(got, m[1])
	}
	if strings.Join(got, " ") != "v0 v1 v2 video" {
		t.Fatalf("unexpected concat labels %v in %q", got, concat)
	}
	if !strings.Contains(concat, "concat=n=3:v=1:a=0") {
		t.Fatalf("unexpected concat chain %q", concat)
	}
	if plan.VideoLabel != "video" {
		t.Fatalf("expected video label, got %q", plan.VideoLabel)
	}
	if plan.HasAudio() {
		t.Fatalf("expected silent plan, got audio label %q", plan.AudioLabel)
	}
	if strings.Contains(plan.FilterComplex, ":a]") {
		t.Fatalf("silent plan should not read audio: %s", plan.FilterComplex)
	}
}

func TestSynthesizeSceneChain(t *testing.T) {
	desc := descriptor(scene.Scene{Image: "a.png", Duration: 2.5})
	plan, err := filtergraph.Synthesize(desc, pathsFor("a.png"), filtergraph.DefaultOptions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := "[0:v]scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=25,trim=duration=2.5,setpts=PTS-STARTPTS[v0]"
	if !strings.HasPrefix(plan.FilterComplex, want+";") {
		t.Fatalf("unexpected scene chain:\n got %s\nwant %s", plan.FilterComplex, want)
	}
}

func TestSynthesizeSubtitleChain(t *testing.T) {
	desc := descriptor(
		scene.Scene{Image: "a.png", Duration: 3, Subtitle: &scene.Subtitle{Text: "It's 10:30, [ok]; 100%", FontSize: 400, Color: "yellow", Position: scene.PositionTop}},
		scene.Scene{Image: "b.png", Duration: 3},
		scene.Scene{Image: "c.png", Duration: 2, Subtitle: &scene.Subtitle{Text: "bye"}},
	)
	opts := filtergraph.DefaultOptions()
	plan, err := filtergraph.Synthesize(desc, pathsFor("a.png", "b.png", "c.png"), opts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if plan.VideoLabel != "video_sub2" {
		t.Fatalf("expected last subtitle label, got %q", plan.VideoLabel)
	}
	for _, fragment := range []string{
		"[video]drawtext=",
		"[video_sub0]drawtext=",
		`enable=gte(t\,0)*lt(t\,3)[video_sub0]`,
		`enable=gte(t\,6)*lt(t\,8)[video_sub2]`,
		"fontsize=96",
		"fontcolor=yellow",
	} {
		if !strings.Contains(plan.FilterComplex, fragment) {
			t.Fatalf("expected %q in %s", fragment, plan.FilterComplex)
		}
	}
	if strings.Contains(plan.FilterComplex, "fontfile=") {
		t.Fatalf("fontfile should be omitted without a resolved font: %s", plan.FilterComplex)
	}

	opts.FontFile = "/usr/share/fonts/DejaVuSans.ttf"
	plan, err = filtergraph.Synthesize(desc, pathsFor("a.png", "b.png", "c.png"), opts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(plan.FilterComplex, "drawtext=fontfile=/usr/share/fonts/DejaVuSans.ttf:text=") {
		t.Fatalf("expected fontfile in %s", plan.FilterComplex)
	}
}

func TestSynthesizeAudioVariants(t *testing.T) {
	cases := []struct {
		name      string
		tts       string
		bgm       string
		wantLabel string
		wantAmix  bool
	}{
		{name: "narration and music", tts: "n.mp3", bgm: "m.mp3", wantLabel: "audio", wantAmix: true},
		{name: "narration only", tts: "n.mp3", wantLabel: "voice"},
		{name: "music only", bgm: "m.mp3", wantLabel: "bgm"},
		{name: "silent", wantLabel: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc := descriptor(scene.Scene{Image: "a.png", TTS: tc.tts, Duration: 3})
			desc.BGM = tc.bgm
			plan, err := filtergraph.Synthesize(desc, pathsFor("a.png", "n.mp3", "m.mp3"), filtergraph.DefaultOptions())
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if plan.AudioLabel != tc.wantLabel {
				t.Fatalf("AudioLabel = %q, want %q", plan.AudioLabel, tc.wantLabel)
			}
			if got := strings.Contains(plan.FilterComplex, "amix=inputs=2:duration=shortest"); got != tc.wantAmix {
				t.Fatalf("amix present = %v in %s", got, plan.FilterComplex)
			}
			if tc.bgm != "" && !strings.Contains(plan.FilterComplex, "volume=0.3[bgm]") {
				t.Fatalf("expected scaled music in %s", plan.FilterComplex)
			}
		})
	}
}

func TestSynthesizeNarrationInputPerScene(t *testing.T) {
	desc := descriptor(
		scene.Scene{Image: "a.png", TTS: "n.mp3", Duration: 1},
		scene.Scene{Image: "b.png", TTS: "n.mp3", Duration: 1},
	)
	desc.BGM = "n.mp3"
	plan, err := filtergraph.Synthesize(desc, pathsFor("a.png", "b.png", "n.mp3"), filtergraph.DefaultOptions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Inputs) != 5 {
		t.Fatalf("expected one input per narrated scene plus music, got %+v", plan.Inputs)
	}
	for _, in := range plan.Inputs[2:] {
		if in.Name != "n.mp3" || in.Path != "/work/n.mp3" || in.LoopedImage {
			t.Fatalf("unexpected audio input %+v", in)
		}
	}
	for _, fragment := range []string{"[2:a]aformat", "[3:a]aformat", "[4:a]aformat"} {
		if strings.Count(plan.FilterComplex, fragment) != 1 {
			t.Fatalf("expected %q exactly once in %s", fragment, plan.FilterComplex)
		}
	}
	if err := plan.Graph.Validate(len(plan.Inputs)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.Contains(plan.FilterComplex, "[n0][n1]concat=n=2:v=0:a=1[narration]") {
		t.Fatalf("expected narration concat in %s", plan.FilterComplex)
	}
}

func TestSynthesizeVideoClipNotLooped(t *testing.T) {
	desc := descriptor(scene.Scene{Image: "clip.mp4", Duration: 4})
	plan, err := filtergraph.Synthesize(desc, pathsFor("clip.mp4"), filtergraph.DefaultOptions())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if plan.Inputs[0].LoopedImage {
		t.Fatal("video clip should be trimmed, not looped")
	}
	if !strings.Contains(plan.FilterComplex, "trim=duration=4") {
		t.Fatalf("expected trim in %s", plan.FilterComplex)
	}
}

func TestSynthesizeRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []float64{0, -1} {
		desc := descriptor(scene.Scene{Image: "a.png", Duration: 3}, scene.Scene{Image: "b.png", Duration: d})
		_, err := filtergraph.Synthesize(desc, pathsFor("a.png", "b.png"), filtergraph.DefaultOptions())
		if !errors.Is(err, filtergraph.ErrInvalidSceneDuration) {
			t.Fatalf("duration %v: expected ErrInvalidSceneDuration, got %v", d, err)
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation marker, got %v", err)
		}
	}
}

func TestSynthesizeMissingAsset(t *testing.T) {
	desc := descriptor(scene.Scene{Image: "a.png", TTS: "n.mp3", Duration: 3})
	_, err := filtergraph.Synthesize(desc, pathsFor("a.png"), filtergraph.DefaultOptions())
	if !errors.Is(err, filtergraph.ErrMissingAsset) {
		t.Fatalf("expected ErrMissingAsset, got %v", err)
	}
	if !strings.Contains(err.Error(), "n.mp3") {
		t.Fatalf("error should name the asset: %v", err)
	}
}
