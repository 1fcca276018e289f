package config

import (
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/chaos-io/rembg-batch/batch"
	"github.com/chaos-io/rembg-batch/rembg"
)

const (
	DefaultInputDir  = "public/images"
	DefaultOutputDir = "public/images_transparent"

	envPrefix = "REMBG_"
)

type Config struct {
	InputDir  string
	OutputDir string
	Policy    string
	Overwrite bool

	Remover       string
	KeyColor      string
	Tolerance     float64
	Softness      float64
	Contiguous    bool
	MaxSide       int
	KeepAlpha     bool
	RemoteURL     string
	RemoteModel   string
	RemoteTimeout time.Duration

	Listen   string
	Schedule string

	LogLevel  string
	LogFormat string
}

func Default() Config {
	return Config{
		InputDir:      DefaultInputDir,
		OutputDir:     DefaultOutputDir,
		Policy:        string(batch.PolicyAbort),
		Overwrite:     true,
		Remover:       rembg.KindColorKey,
		KeyColor:      rembg.DefaultKeyColor,
		Tolerance:     rembg.DefaultTolerance,
		Softness:      rembg.DefaultSoftness,
		RemoteURL:     "http://127.0.0.1:7000",
		RemoteTimeout: 2 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// ErrHelp 命令行带了 -h / -help, 调用方打印 Usage 后正常退出
var ErrHelp = flag.ErrHelp

// Load 优先级: 命令行 > 环境变量 (含 .env) > 默认值
//
// envFile 为空时尝试加载当前目录的 .env, 不存在不报错
func Load(args []string, envFile string) (Config, error) {
	if err := loadDotenv(envFile); err != nil {
		return Config{}, err
	}

	c := Default()
	if err := c.fromEnv(); err != nil {
		return Config{}, err
	}

	fs := newFlagSet(&c, io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, ErrHelp
		}
		return Config{}, errors.Wrap(err, "parse flags")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Usage 把全部命令行参数及默认值写到 w
func Usage(w io.Writer) {
	c := Default()
	fs := newFlagSet(&c, w)
	_, _ = io.WriteString(w, "Usage of rembg-batch:\n")
	fs.PrintDefaults()
}

func newFlagSet(c *Config, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("rembg-batch", flag.ContinueOnError)
	fs.SetOutput(out)
	c.bind(fs)
	return fs
}

func loadDotenv(envFile string) error {
	if envFile == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		envFile = ".env"
	}
	return errors.Wrapf(godotenv.Load(envFile), "load %s", envFile)
}

func (c *Config) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.InputDir, "in", c.InputDir, "directory with the PNG images to process")
	fs.StringVar(&c.OutputDir, "out", c.OutputDir, "directory the transparent PNGs are written to")
	fs.StringVar(&c.Policy, "policy", c.Policy, "what to do when a file fails: abort or continue")
	fs.BoolVar(&c.Overwrite, "overwrite", c.Overwrite, "overwrite existing output files")

	fs.StringVar(&c.Remover, "remover", c.Remover, "background remover: colorkey, remote or passthrough")
	fs.StringVar(&c.KeyColor, "key-color", c.KeyColor, "colorkey: background color as #rrggbb")
	fs.Float64Var(&c.Tolerance, "tolerance", c.Tolerance, "colorkey: Lab distance treated as background")
	fs.Float64Var(&c.Softness, "softness", c.Softness, "colorkey: Lab distance of the alpha ramp past tolerance")
	fs.BoolVar(&c.Contiguous, "contiguous", c.Contiguous, "colorkey: only remove background connected to the border")
	fs.IntVar(&c.MaxSide, "max-side", c.MaxSide, "downscale images whose longest side is larger before removing (0 disables)")
	fs.BoolVar(&c.KeepAlpha, "keep-alpha", c.KeepAlpha, "copy images that already have transparency without running the remover")
	fs.StringVar(&c.RemoteURL, "remote-url", c.RemoteURL, "remote: base url of a rembg server")
	fs.StringVar(&c.RemoteModel, "remote-model", c.RemoteModel, "remote: model name sent to the server")
	fs.DurationVar(&c.RemoteTimeout, "remote-timeout", c.RemoteTimeout, "remote: per image request timeout")

	fs.StringVar(&c.Listen, "listen", c.Listen, "serve the HTTP api on this address instead of running once")
	fs.StringVar(&c.Schedule, "schedule", c.Schedule, "cron spec to run the batch periodically, e.g. \"@every 1h\"")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
}

func (c *Config) fromEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	var err error
	parse := func(name string, fn func(string) error) {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || err != nil {
			return
		}
		if perr := fn(v); perr != nil {
			err = errors.Wrapf(perr, "env %s%s", envPrefix, name)
		}
	}

	str("INPUT_DIR", &c.InputDir)
	str("OUTPUT_DIR", &c.OutputDir)
	str("POLICY", &c.Policy)
	str("REMOVER", &c.Remover)
	str("KEY_COLOR", &c.KeyColor)
	str("REMOTE_URL", &c.RemoteURL)
	str("REMOTE_MODEL", &c.RemoteModel)
	str("LISTEN", &c.Listen)
	str("SCHEDULE", &c.Schedule)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	parse("OVERWRITE", func(v string) (e error) { c.Overwrite, e = strconv.ParseBool(v); return })
	parse("CONTIGUOUS", func(v string) (e error) { c.Contiguous, e = strconv.ParseBool(v); return })
	parse("KEEP_ALPHA", func(v string) (e error) { c.KeepAlpha, e = strconv.ParseBool(v); return })
	parse("TOLERANCE", func(v string) (e error) { c.Tolerance, e = strconv.ParseFloat(v, 64); return })
	parse("SOFTNESS", func(v string) (e error) { c.Softness, e = strconv.ParseFloat(v, 64); return })
	parse("MAX_SIDE", func(v string) (e error) { c.MaxSide, e = strconv.Atoi(v); return })
	parse("REMOTE_TIMEOUT", func(v string) (e error) { c.RemoteTimeout, e = time.ParseDuration(v); return })

	return err
}

func (c Config) Validate() error {
	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("input and output directories must be set")
	}
	if _, err := batch.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.MaxSide < 0 {
		return errors.Errorf("max-side must be >= 0, got %d", c.MaxSide)
	}
	// 构造一次 remover, 检查参数
	if _, err := rembg.New(c.RemoverOptions()); err != nil {
		return err
	}
	return nil
}

func (c Config) BatchOptions() batch.Options {
	p, _ := batch.ParsePolicy(c.Policy)
	return batch.Options{
		Policy:    p,
		Overwrite: c.Overwrite,
	}
}

func (c Config) RemoverOptions() rembg.Options {
	return rembg.Options{
		Kind:              c.Remover,
		KeyColor:          c.KeyColor,
		Tolerance:         c.Tolerance,
		Softness:          c.Softness,
		Contiguous:        c.Contiguous,
		RemoteURL:         c.RemoteURL,
		RemoteModel:       c.RemoteModel,
		RemoteTimeout:     c.RemoteTimeout,
		MaxSide:           c.MaxSide,
		KeepExistingAlpha: c.KeepAlpha,
	}
}
