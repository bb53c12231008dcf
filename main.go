package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/retype/config"
	"github.com/ByLCY/retype/dsl"
	"github.com/ByLCY/retype/layout"
	canvasrenderer "github.com/ByLCY/retype/renderer/canvas"
)

// job 汇总一次命令行调用的输入输出。
type job struct {
	Input  string
	Image  string
	Output string
	Debug  string
	Data   any
	Config config.Config
}

func main() {
	input := flag.String("in", "examples/demo.retype", "任务清单文件路径")
	imagePath := flag.String("image", "", "待重排的原始图片（png/jpeg/gif/webp）")
	output := flag.String("out", "output/demo.png", "输出路径，按扩展名选择 png/jpg/pdf")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到译文占位符的 JSON 数据")
	configPath := flag.String("config", "", "YAML 配置文件路径")
	envPath := flag.String("env", ".env", "额外的环境变量文件")
	forceHorizontal := flag.Bool("force-horizontal", false, "所有区域按横排处理")
	mag := flag.Int("mag", 0, "文字放大倍率")
	lang := flag.String("lang", "", "目标语言代码，如 ENG、CHS")
	workers := flag.Int("workers", 0, "并发绘制的区域数")
	flag.Parse()

	log := logrus.New()
	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("加载环境变量失败: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 命令行显式给出的参数优先
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "force-horizontal":
			cfg.ForceHorizontal = *forceHorizontal
		case "mag":
			cfg.Magnification = *mag
		case "lang":
			cfg.TargetLang = *lang
		case "workers":
			cfg.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("参数无效: %v", err)
	}
	lvl, _ := cfg.Level()
	log.SetLevel(lvl)

	var data any
	if *dataJSON != "" {
		if err := json.Unmarshal([]byte(*dataJSON), &data); err != nil {
			log.Fatalf("解析 data JSON 失败: %v", err)
		}
	}
	if *imagePath == "" {
		log.Fatalf("必须通过 -image 指定原始图片")
	}

	j := job{Input: *input, Image: *imagePath, Output: *output, Debug: *debug, Data: data, Config: cfg}
	// 同一次运行的日志共享 run 字段
	entry := log.WithField("run", uuid.New().String())
	if err := run(j, entry); err != nil {
		entry.Fatalf("重排失败: %v", err)
	}
	entry.WithField("out", *output).Info("已生成输出")
}

// run 串联解析、排版、渲染与编码。
func run(j job, log logrus.FieldLogger) error {
	file, err := os.Open(j.Input)
	if err != nil {
		return fmt.Errorf("无法打开任务清单 %s: %w", j.Input, err)
	}
	defer file.Close()

	doc, err := dsl.Parse(j.Input, file)
	if err != nil {
		return fmt.Errorf("解析任务清单失败: %w", err)
	}
	manifest, err := layout.FromDocument(doc, j.Data)
	if err != nil {
		return fmt.Errorf("任务清单无效: %w", err)
	}
	for idx, paths := range manifest.Unbound {
		log.WithFields(logrus.Fields{"region": idx, "missing": strings.Join(paths, ",")}).
			Warn("译文占位符无法解析，跳过该区域")
	}
	for i, text := range manifest.Texts {
		if text != "" {
			manifest.Texts[i] = layout.NormalizeTranslation(text)
		}
	}

	dst, err := loadImage(j.Image)
	if err != nil {
		return err
	}

	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		BaseDir:   filepath.Dir(j.Input),
		Font:      j.Config.Font,
		Style:     j.Config.FontStyle,
		Workers:   j.Config.Workers,
		HaloRatio: j.Config.Halo,
		Logger:    log,
	})
	result, err := layout.Build(manifest, j.Config.BuildOptions(r))
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}
	if j.Debug != "" {
		if err := writeDebug(result, j.Debug); err != nil {
			return err
		}
	}

	report, err := r.Render(dst, result)
	if err != nil {
		return fmt.Errorf("渲染失败: %w", err)
	}
	log.WithFields(logrus.Fields{"rendered": report.Rendered, "skipped": len(report.Skipped)}).Info("区域渲染完成")

	return writeImage(dst, j.Output, manifest.Name)
}

// loadImage 解码图片并转换为以原点为起点的 RGBA。
func loadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开图片 %s: %w", path, err)
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", path, err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// writeImage 按扩展名编码输出。
func writeImage(img *image.RGBA, path, title string) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("编码 PNG 失败: %w", err)
		}
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return fmt.Errorf("编码 JPEG 失败: %w", err)
		}
	case ".pdf":
		data, err := canvasrenderer.EncodePDF(img, title)
		if err != nil {
			return err
		}
		buf.Write(data)
	default:
		return fmt.Errorf("不支持的输出格式: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	return nil
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
