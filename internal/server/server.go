package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"devhttpd/internal/config"
	"devhttpd/internal/launcher"
)

// shutdownTimeout は処理中のリクエストを待つ上限
const shutdownTimeout = 5 * time.Second

// Server は静的テストサーバーを管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	opener     launcher.Opener
	out        io.Writer
	log        *logrus.Logger

	mu       sync.Mutex
	started  bool
	listener net.Listener
	url      string
	ready    chan struct{}
}

// Option はServerの生成オプション
type Option func(*Server)

// WithOutput はバナーとアクセスログの出力先を指定する
func WithOutput(w io.Writer) Option {
	return func(s *Server) { s.out = w }
}

// WithOpener はブラウザ起動処理を差し替える
func WithOpener(o launcher.Opener) Option {
	return func(s *Server) { s.opener = o }
}

// WithLogger はロガーを差し替える
func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		opener: launcher.New(cfg.Browser.Open),
		out:    os.Stdout,
		log:    logrus.StandardLogger(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = s.newEngine()
	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}
	// 1接続1リクエストで順番に処理する
	s.httpServer.SetKeepAlivesEnabled(false)

	return s
}

// newEngine はginエンジンを組み立てる
func (s *Server) newEngine() *gin.Engine {
	engine := s.baseEngine()

	files := NewFileHandler(s.config.Static.Root)
	engine.Any("/*filepath", files.Handle)
	// Any に含まれないメソッド
	engine.NoRoute(files.Handle)

	return engine
}

// baseEngine はアクセスログ・リカバリー・CORSのミドルウェアだけを組んだエンジンを返す
func (s *Server) baseEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	// X-Forwarded-For は信用せず接続元アドレスを記録する
	_ = engine.SetTrustedProxies(nil)

	engine.Use(
		gin.LoggerWithConfig(gin.LoggerConfig{
			Formatter: accessLogFormatter,
			Output:    s.out,
		}),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			s.log.WithFields(logrus.Fields{
				"path":  c.Request.URL.Path,
				"panic": recovered,
			}).Error("リクエスト処理中にパニックが発生しました")
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		CORSMiddleware(),
	)

	return engine
}

// Handler はリクエストハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start はサーバーを起動し、ctx がキャンセルされるまで接続を受け付ける
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("サーバーは既に起動しています")
	}
	s.started = true
	s.mu.Unlock()

	tlsConfig, err := s.loadTLS()
	if err != nil {
		return err
	}

	ln, err := s.listen(tlsConfig)
	if err != nil {
		return err
	}

	secure := tlsConfig != nil
	scheme, protocol := "http", "HTTP"
	if secure {
		scheme, protocol = "https", "HTTPS"
	}
	port := ln.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.config.Server.Host, strconv.Itoa(port)))

	s.mu.Lock()
	s.listener = ln
	s.url = url
	s.mu.Unlock()

	printBanner(s.out, bannerInfo{
		Title:    s.config.Banner.Title,
		Protocol: protocol,
		URL:      url,
		Port:     port,
		Root:     s.config.Static.Root,
		Secure:   secure,
	})

	s.openBrowser(url)

	// net/http 内部のエラー (TLSハンドシェイク失敗など) はロガーへ
	errWriter := s.log.WriterLevel(logrus.WarnLevel)
	defer errWriter.Close()
	s.httpServer.ErrorLog = log.New(errWriter, "", 0)

	fmt.Fprintln(s.out, "\nサーバーを起動しました。接続を待っています...")
	fmt.Fprintln(s.out)

	// バナー出力とブラウザ起動が済んでから通知する
	close(s.ready)

	serveCh := make(chan error, 1)
	go func() {
		serveCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("停止要求を受信しました")
	case err := <-serveCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーの実行に失敗: %w", err)
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	<-serveCh

	fmt.Fprintln(s.out, "\nサーバーを停止しました")
	return nil
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 新しい接続の受け付けを止め、処理中のリクエストは完了を待つ
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}
	return nil
}

// Ready はリッスンを開始しバナーを出力した後にクローズされるチャンネルを返す
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// URL は表示用のURLを返す。起動前は空文字
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Addr は実際にリッスンしているアドレスを返す。起動前は nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// listen はTCPリスナーを作成し、必要に応じて接続数制限とTLSを重ねる
func (s *Server) listen(tlsConfig *tls.Config) (net.Listener, error) {
	addr := s.config.ServerAddress()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}

	if n := s.config.Server.MaxConns; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	return ln, nil
}

// loadTLS は証明書と秘密鍵を読み込む
// TLSが無効、またはファイルが無い場合は nil を返し平文で起動する
func (s *Server) loadTLS() (*tls.Config, error) {
	cfg := s.config.TLS
	if !cfg.Enabled {
		return nil, nil
	}

	if missing := missingFiles(cfg.CertFile, cfg.KeyFile); len(missing) > 0 {
		if cfg.RequireFiles {
			return nil, fmt.Errorf("%w: ファイルが見つかりません: %s", ErrTLSConfig, strings.Join(missing, ", "))
		}
		s.log.WithField("missing", missing).Warn("TLS用のファイルが見つからないためHTTPで起動します")
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTLSConfig, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// openBrowser はURLをブラウザで開く。失敗しても起動は続ける
func (s *Server) openBrowser(url string) {
	if err := s.opener.Open(url); err != nil {
		err = fmt.Errorf("%w: %w", ErrBrowserLaunch, err)
		s.log.WithError(err).Warn("ブラウザを自動で開けませんでした")
		fmt.Fprintf(s.out, "\nブラウザで次のアドレスを開いてください: %s\n", url)
	}
}

// missingFiles は存在しないファイルを返す
func missingFiles(paths ...string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	return missing
}
