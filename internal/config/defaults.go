package config

const (
	defaultConfigPath      = "~/.config/reelforge/config.toml"
	defaultWorkDir         = "~/.local/share/reelforge/work"
	defaultOutputDir       = "~/.local/share/reelforge/output"
	defaultLogDir          = "~/.local/share/reelforge/logs"
	defaultAPIBind         = "127.0.0.1:7490"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultTimeoutSeconds  = 1800
	defaultVideoCodec      = "libx264"
	defaultPreset          = "medium"
	defaultCRF             = 23
	defaultPixelFormat     = "yuv420p"
	defaultFrameRate       = 25
	defaultAudioCodec      = "aac"
	defaultAudioBitrate    = "192k"
	defaultWidth           = 1280
	defaultHeight          = 720
	defaultSceneDuration   = 3.0
	defaultBGMVolume       = 0.3
	defaultVoiceVolume     = 1.0
	defaultFontSize        = 36
	defaultMinFontSize     = 12
	defaultMaxFontSize     = 96
	defaultFontColor       = "white"
	defaultMaxAssetBytes   = 512 << 20
	defaultProjectTTLHours = 24
	defaultSweepSchedule   = "@every 10m"
	defaultUploadRate      = 20
	defaultUploadBurst     = 40
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultRetentionDays   = 30
)

// defaultFontCandidates lists fonts commonly installed on Linux and macOS hosts,
// checked in order.
var defaultFontCandidates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	fonts := make([]string, len(defaultFontCandidates))
	copy(fonts, defaultFontCandidates)
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultTimeoutSeconds,
			VideoCodec:     defaultVideoCodec,
			Preset:         defaultPreset,
			CRF:            defaultCRF,
			PixelFormat:    defaultPixelFormat,
			FrameRate:      defaultFrameRate,
			AudioCodec:     defaultAudioCodec,
			AudioBitrate:   defaultAudioBitrate,
			VerifyOutput:   true,
		},
		Composition: Composition{
			Width:           defaultWidth,
			Height:          defaultHeight,
			SceneDuration:   defaultSceneDuration,
			BGMVolume:       defaultBGMVolume,
			VoiceVolume:     defaultVoiceVolume,
			DefaultFontSize: defaultFontSize,
			MinFontSize:     defaultMinFontSize,
			MaxFontSize:     defaultMaxFontSize,
			FontColor:       defaultFontColor,
			FontCandidates:  fonts,
		},
		Assets: Assets{
			MaxBytes:     defaultMaxAssetBytes,
			SniffContent: true,
		},
		Registry: Registry{
			ProjectTTLHours: defaultProjectTTLHours,
			SweepSchedule:   defaultSweepSchedule,
		},
		API: API{
			UploadRate:  defaultUploadRate,
			UploadBurst: defaultUploadBurst,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
			OnSuccess:             true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
