package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 是 pispeak 的顶层配置结构。
type Config struct {
	TTS   TTSConfig   `yaml:"tts"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// TTSConfig 语音合成配置。
// Engine 指定默认引擎；Priority 非空时启用多引擎兜底，
// 按列表顺序依次尝试。
type TTSConfig struct {
	Engine   string   `yaml:"engine"`
	Priority []string `yaml:"priority"`

	Piper   PiperConfig   `yaml:"piper"`
	Edge    EdgeConfig    `yaml:"edge"`
	Say     SayConfig     `yaml:"say"`
	Tencent TencentConfig `yaml:"tencent"`
	Vits    VitsConfig    `yaml:"vits"`
}

// PiperConfig piper 子进程引擎配置。
// ExecPath 为空时依次回退到 PIPER_PATH 环境变量和平台默认命令名。
type PiperConfig struct {
	ExecPath    string  `yaml:"exec_path"`
	ModelPath   string  `yaml:"model_path"`
	ConfigPath  string  `yaml:"config_path"`
	LengthScale float64 `yaml:"length_scale"`
}

// EdgeConfig Edge TTS 引擎配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// SayConfig macOS say 引擎配置。
type SayConfig struct {
	Voice string `yaml:"voice"`
}

// TencentConfig 腾讯云 TTS 引擎配置。
type TencentConfig struct {
	SecretID  string  `yaml:"secret_id"`
	SecretKey string  `yaml:"secret_key"`
	VoiceType int64   `yaml:"voice_type"`
	Region    string  `yaml:"region"`
	Speed     float64 `yaml:"speed"`
}

// VitsConfig sherpa-onnx 进程内 VITS 引擎配置。
type VitsConfig struct {
	ModelPath   string  `yaml:"model_path"`
	TokensPath  string  `yaml:"tokens_path"`
	LexiconPath string  `yaml:"lexicon_path"`
	DataDir     string  `yaml:"data_dir"`
	NumThreads  int     `yaml:"num_threads"`
	SpeakerID   int     `yaml:"speaker_id"`
	Speed       float64 `yaml:"speed"`
}

// CacheConfig 合成结果缓存配置。
// MaxSizeMB 为 0 时禁用缓存。
type CacheConfig struct {
	Dir       string `yaml:"dir"`
	DBPath    string `yaml:"db_path"`
	MaxSizeMB int64  `yaml:"max_size_mb"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${PISPEAK_TENCENT_SECRET_KEY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的字段填充默认值。
func setDefaults(cfg *Config) {
	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = "piper"
	}
	if cfg.TTS.Piper.LengthScale == 0 {
		cfg.TTS.Piper.LengthScale = 1.0
	}
	if cfg.TTS.Edge.Voice == "" {
		cfg.TTS.Edge.Voice = "zh-CN-XiaoxiaoNeural"
	}
	if cfg.TTS.Tencent.Speed == 0 {
		cfg.TTS.Tencent.Speed = 1.0
	}
	if cfg.TTS.Vits.NumThreads == 0 {
		cfg.TTS.Vits.NumThreads = 2
	}
	if cfg.TTS.Vits.Speed == 0 {
		cfg.TTS.Vits.Speed = 1.0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
