package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration persisted as YAML. Missing files are
// created with defaults so authors have something to edit.
type Config struct {
	Audio    AudioCfg    `yaml:"audio"`
	Graphics GraphicsCfg `yaml:"graphics"`
	Storage  StorageCfg  `yaml:"storage"`
	Logging  LoggingCfg  `yaml:"logging"`
}

type AudioCfg struct {
	DefaultVolume float64 `yaml:"default_volume"`
	VoiceVolume   float64 `yaml:"voice_volume"`
	MusicVolume   float64 `yaml:"music_volume"`
	FadeIn        float64 `yaml:"fade_in"`
	FadeOut       float64 `yaml:"fade_out"`
	// VoiceLink joins a character's voice tag and a dialogue voice index
	// into the voice resource name.
	VoiceLink string `yaml:"voice_link"`
}

type GraphicsCfg struct {
	DefaultTransition string `yaml:"default_transition"`
	PreloadAhead      int    `yaml:"preload_ahead"`
	SceneZIndex       int    `yaml:"scene_zindex"`
	SpriteZIndex      int    `yaml:"sprite_zindex"`
}

type StorageCfg struct {
	SaveDir    string `yaml:"save_dir"`
	GlobalFile string `yaml:"global_file"`
}

type LoggingCfg struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() Config {
	return Config{
		Audio: AudioCfg{
			DefaultVolume: 0.7,
			VoiceVolume:   0.7,
			MusicVolume:   0.7,
			FadeIn:        0,
			FadeOut:       0,
			VoiceLink:     "_",
		},
		Graphics: GraphicsCfg{
			DefaultTransition: "dissolve",
			PreloadAhead:      8,
			SceneZIndex:       0,
			SpriteZIndex:      1,
		},
		Storage: StorageCfg{
			SaveDir:    "saves",
			GlobalFile: "global.json",
		},
		Logging: LoggingCfg{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the config at path. A missing file is written back with the
// defaults; fields absent from a valid file keep their defaults; a malformed
// file yields the full defaults together with the parse error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
		if werr := write(path, cfg); werr != nil {
			return cfg, werr
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func write(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
