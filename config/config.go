package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/retype/layout"
)

// EnvPrefix 为环境变量覆盖项的前缀。
const EnvPrefix = "RETYPE_"

// 分词模式。
const (
	WordSpacingAuto  = "auto"
	WordSpacingTrue  = "true"
	WordSpacingFalse = "false"
)

// Config 汇总一次重排任务的运行参数。
type Config struct {
	Magnification   int     `yaml:"magnification"`
	ForceHorizontal bool    `yaml:"force_horizontal"`
	TargetLang      string  `yaml:"target_lang"`
	WordSpacing     string  `yaml:"word_spacing"`
	WordGap         float64 `yaml:"word_gap"`
	Font            string  `yaml:"font"`
	FontStyle       string  `yaml:"font_style"`
	Workers         int     `yaml:"workers"`
	MaxEnlargeSteps int     `yaml:"max_enlarge_steps"`
	// Halo 为背景描边半径与字号之比，0 使用渲染器默认值，负数关闭描边。
	Halo     float64 `yaml:"halo"`
	LogLevel string  `yaml:"log_level"`
}

// Default 返回内置默认配置。
func Default() Config {
	return Config{
		Magnification:   layout.DefaultMagnification,
		TargetLang:      "ENG",
		WordSpacing:     WordSpacingAuto,
		WordGap:         layout.DefaultWordGap,
		Workers:         1,
		MaxEnlargeSteps: layout.DefaultMaxEnlargeSteps,
		LogLevel:        "info",
	}
}

// Load 依次叠加默认值、YAML 文件（path 为空时跳过）与 RETYPE_* 环境变量。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv 把 .env 文件载入进程环境，文件不存在时忽略；已有的环境变量不会被覆盖。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return nil
}

// LoadFile 用 YAML 文件中出现的字段覆盖当前配置。
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	return nil
}

// ApplyEnv 用环境变量覆盖配置，变量名为 RETYPE_ 加上大写的 YAML 字段名。
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s 不是整数: %q", EnvPrefix, key, v))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s 不是数字: %q", EnvPrefix, key, v))
				return
			}
			*dst = f
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	setInt("MAGNIFICATION", &c.Magnification)
	if v, ok := get("FORCE_HORIZONTAL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sFORCE_HORIZONTAL 不是布尔值: %q", EnvPrefix, v))
		} else {
			c.ForceHorizontal = b
		}
	}
	setString("TARGET_LANG", &c.TargetLang)
	setString("WORD_SPACING", &c.WordSpacing)
	setFloat("WORD_GAP", &c.WordGap)
	setString("FONT", &c.Font)
	setString("FONT_STYLE", &c.FontStyle)
	setInt("WORKERS", &c.Workers)
	setInt("MAX_ENLARGE_STEPS", &c.MaxEnlargeSteps)
	setFloat("HALO", &c.Halo)
	setString("LOG_LEVEL", &c.LogLevel)
	return errors.Join(errs...)
}

// Validate 检查取值范围。
func (c Config) Validate() error {
	if c.Magnification < 1 {
		return fmt.Errorf("magnification 必须为正整数，当前为 %d", c.Magnification)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers 必须为正整数，当前为 %d", c.Workers)
	}
	if c.WordGap < 0 {
		return fmt.Errorf("word_gap 不能为负数")
	}
	if c.MaxEnlargeSteps < 0 {
		return fmt.Errorf("max_enlarge_steps 不能为负数")
	}
	switch strings.ToLower(c.WordSpacing) {
	case "", WordSpacingAuto, WordSpacingTrue, WordSpacingFalse:
	default:
		return fmt.Errorf("word_spacing 只能是 auto/true/false，当前为 %q", c.WordSpacing)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// UseWordSpacing 解析分词模式；auto 时按目标语言判断。
func (c Config) UseWordSpacing() bool {
	switch strings.ToLower(c.WordSpacing) {
	case WordSpacingTrue:
		return true
	case WordSpacingFalse:
		return false
	default:
		return layout.UsesWordSpacing(c.TargetLang)
	}
}

// Level 返回日志级别，空值视为 info。
func (c Config) Level() (logrus.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("无效的 log_level: %w", err)
	}
	return lvl, nil
}

// BuildOptions 把配置转换为排版参数，Typesetter 由调用方填入。
func (c Config) BuildOptions(ts layout.Typesetter) layout.BuildOptions {
	return layout.BuildOptions{
		Typesetter:      ts,
		Magnification:   c.Magnification,
		ForceHorizontal: c.ForceHorizontal,
		WordSpacing:     c.UseWordSpacing(),
		WordGap:         c.WordGap,
		MaxEnlargeSteps: c.MaxEnlargeSteps,
	}
}
