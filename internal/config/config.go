package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// プリセット名
const (
	PresetSecure = "secure" // 0.0.0.0:9990、TLS 有効
	PresetLocal  = "local"  // localhost:8000、HTTP のみ
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	TLS     TLSConfig     `yaml:"tls" toml:"tls"`
	Static  StaticConfig  `yaml:"static" toml:"static"`
	Browser BrowserConfig `yaml:"browser" toml:"browser"`
	Banner  BannerConfig  `yaml:"banner" toml:"banner"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" toml:"host" validate:"required,hostname|ip"` // リッスンするホスト
	Port int    `yaml:"port" toml:"port" validate:"min=0,max=65535"`      // リッスンするポート番号 (0 はテスト用の空きポート)

	// タイムアウト設定
	ReadTimeout  Duration `yaml:"read_timeout" toml:"read_timeout"`   // 読み込みタイムアウト
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout"` // 書き込みタイムアウト

	// 同時に受け付ける接続数 (0 は無制限)
	MaxConns int `yaml:"max_conns" toml:"max_conns" validate:"min=0"`
}

// TLSConfig はTLSの設定
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	CertFile string `yaml:"cert_file" toml:"cert_file" validate:"required_if=Enabled true"` // PEM 証明書チェーン
	KeyFile  string `yaml:"key_file" toml:"key_file" validate:"required_if=Enabled true"`   // PEM 秘密鍵

	// true の場合、ファイルが存在しないときに平文へフォールバックせず起動を失敗させる
	RequireFiles bool `yaml:"require_files" toml:"require_files"`
}

// StaticConfig は静的ファイル配信の設定
type StaticConfig struct {
	Root string `yaml:"root" toml:"root" validate:"required"` // 配信ルートディレクトリ
}

// BrowserConfig は起動時のブラウザ起動設定
type BrowserConfig struct {
	Open bool `yaml:"open" toml:"open"`
}

// BannerConfig は起動バナーの設定
type BannerConfig struct {
	Title string `yaml:"title" toml:"title"`
}

// Duration は "10s" 形式の文字列で指定できる time.Duration
type Duration time.Duration

// UnmarshalText は YAML/TOML の文字列から Duration を読み込む
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("無効な時間指定 %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText は Duration を文字列に変換する
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std は time.Duration を返す
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

var validate = validator.New()

// Default は secure プリセットを返す
func Default() *Config {
	cfg, _ := Preset(PresetSecure)
	return cfg
}

// Preset は名前付きの設定を返す
func Preset(name string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: 0,
			MaxConns:     1,
		},
		Static:  StaticConfig{Root: executableDir()},
		Browser: BrowserConfig{Open: true},
		Banner:  BannerConfig{Title: "静的テストサーバー"},
	}

	switch name {
	case PresetSecure:
		cfg.Server.Host = "0.0.0.0"
		cfg.Server.Port = 9990
		cfg.TLS = TLSConfig{
			Enabled:  true,
			CertFile: "/root/cert.pem",
			KeyFile:  "/root/privkey.pem",
		}
	case PresetLocal:
		cfg.Server.Host = "localhost"
		cfg.Server.Port = 8000
	default:
		return nil, fmt.Errorf("不明なプリセット: %q", name)
	}

	return cfg, nil
}

// Load は設定を読み込む
// デフォルト値に .env と環境変数の値を重ねる
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv は .env ファイルを環境変数に読み込む。ファイルが無ければ何もしない
// 既に設定されている環境変数は上書きしない
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(".env の読み込みに失敗: %w", err)
	}
	return nil
}

// LoadFile は YAML または TOML の設定ファイルをデフォルト値の上に読み込む
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("未対応の設定ファイル形式: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("タイムアウトに負の値は指定できません")
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
// IPv6 のホストは角括弧で囲む
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() error {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Static.Root = getEnvOrDefault("SERVE_ROOT", c.Static.Root)
	c.TLS.CertFile = getEnvOrDefault("TLS_CERT_FILE", c.TLS.CertFile)
	c.TLS.KeyFile = getEnvOrDefault("TLS_KEY_FILE", c.TLS.KeyFile)

	var err error
	if c.Server.Port, err = getEnvAsIntOrDefault("SERVER_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.TLS.Enabled, err = getEnvAsBoolOrDefault("TLS_ENABLED", c.TLS.Enabled); err != nil {
		return err
	}
	if c.Browser.Open, err = getEnvAsBoolOrDefault("OPEN_BROWSER", c.Browser.Open); err != nil {
		return err
	}
	return nil
}

// executableDir は実行ファイルのあるディレクトリを返す
// 取得できない場合はカレントディレクトリ
func executableDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得する
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が整数ではありません: %w", key, err)
	}
	return n, nil
}

// getEnvAsBoolOrDefault は環境変数を真偽値として取得する
func getEnvAsBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("環境変数 %s が真偽値ではありません: %w", key, err)
	}
	return b, nil
}
