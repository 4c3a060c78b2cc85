// Package main は静的テストサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"devhttpd/internal/config"
	"devhttpd/internal/server"
)

// options はコマンドラインオプションの値
type options struct {
	configFile string
	preset     string
	host       string
	port       int
	root       string
	useTLS     bool
	certFile   string
	keyFile    string
	strictTLS  bool
	noBrowser  bool
	debug      bool
	help       bool
}

// newFlagSet はオプション定義済みのFlagSetを作成する
func newFlagSet(name string, errorHandling flag.ErrorHandling) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, errorHandling)
	fs.StringVar(&o.configFile, "config", "", "設定ファイル (.yaml / .yml / .toml)")
	fs.StringVar(&o.preset, "preset", "", "プリセット: secure (0.0.0.0:9990, TLS) / local (localhost:8000)")
	fs.StringVar(&o.host, "host", "", "サーバーのホスト")
	fs.IntVar(&o.port, "port", 0, "サーバーのポート")
	fs.StringVar(&o.root, "root", "", "配信ディレクトリ (デフォルト: 実行ファイルのディレクトリ)")
	fs.BoolVar(&o.useTLS, "tls", false, "TLSを有効にする (-tls=false で無効)")
	fs.StringVar(&o.certFile, "cert", "", "TLS証明書ファイル (PEM)")
	fs.StringVar(&o.keyFile, "key", "", "TLS秘密鍵ファイル (PEM)")
	fs.BoolVar(&o.strictTLS, "require-tls-files", false, "TLSファイルが無い場合にHTTPへフォールバックせず終了する")
	fs.BoolVar(&o.noBrowser, "no-browser", false, "起動時にブラウザを開かない")
	fs.BoolVar(&o.debug, "debug", false, "デバッグログを出力する")
	fs.BoolVar(&o.help, "help", false, "ヘルプを表示")
	return fs, o
}

func main() {
	fs, opts := newFlagSet(os.Args[0], flag.ExitOnError)
	_ = fs.Parse(os.Args[1:])

	// ヘルプ表示
	if opts.help {
		fmt.Println("devhttpd")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		fs.PrintDefaults()
		os.Exit(0)
	}

	if opts.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(opts.configFile, opts.preset)
	if err != nil {
		logrus.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if err := applyFlags(cfg, fs, opts); err != nil {
		logrus.Fatalf("オプションの適用に失敗しました: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("設定の検証に失敗しました: %v", err)
	}

	srv := server.New(cfg)

	// Ctrl+C / SIGTERM でキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Debugf("サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		logrus.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}

// applyFlags はコマンドラインで指定されたオプションだけで設定を上書きする
// 真偽値も指定されていれば false を含めてそのまま反映する
func applyFlags(cfg *config.Config, fs *flag.FlagSet, o *options) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = o.host
		case "port":
			cfg.Server.Port = o.port
		case "root":
			abs, absErr := filepath.Abs(o.root)
			if absErr != nil {
				err = fmt.Errorf("配信ディレクトリの解決に失敗: %w", absErr)
				return
			}
			cfg.Static.Root = abs
		case "tls":
			cfg.TLS.Enabled = o.useTLS
		case "cert":
			cfg.TLS.CertFile = o.certFile
		case "key":
			cfg.TLS.KeyFile = o.keyFile
		case "require-tls-files":
			cfg.TLS.RequireFiles = o.strictTLS
		case "no-browser":
			cfg.Browser.Open = !o.noBrowser
		}
	})
	return err
}

// loadConfig は設定ファイル、プリセット、環境変数の順で設定を決める
func loadConfig(file, preset string) (*config.Config, error) {
	switch {
	case file != "":
		return config.LoadFile(file)
	case preset != "":
		return config.Preset(preset)
	default:
		return config.Load()
	}
}
