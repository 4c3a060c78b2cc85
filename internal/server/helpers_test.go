package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"devhttpd/internal/config"
)

// syncBuffer は複数ゴルーチンから書き込まれるテスト用バッファ
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestConfig はテスト用の設定を作成する (空きポート、ブラウザ無効)
func newTestConfig(t *testing.T, root string) *config.Config {
	t.Helper()

	cfg, err := config.Preset(config.PresetLocal)
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Static.Root = root
	cfg.Browser.Open = false
	return cfg
}

// newTestLogger は出力をバッファに向けたロガーを作成する
func newTestLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	return l
}

// writeFile はテスト用のファイルを作成する
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// runningServer は起動中のテストサーバー
type runningServer struct {
	srv    *Server
	out    *syncBuffer
	logs   *syncBuffer
	cancel context.CancelFunc
	errCh  chan error
}

// startServer はサーバーを別ゴルーチンで起動し、リッスン開始まで待つ
func startServer(t *testing.T, cfg *config.Config, opts ...Option) *runningServer {
	t.Helper()

	out, logs := &syncBuffer{}, &syncBuffer{}
	opts = append([]Option{WithOutput(out), WithLogger(newTestLogger(logs))}, opts...)
	srv := New(cfg, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("サーバーの起動に失敗しました: %v", err)
	case <-time.After(3 * time.Second):
		cancel()
		t.Fatal("サーバーの起動がタイムアウトしました")
	}

	rs := &runningServer{srv: srv, out: out, logs: logs, cancel: cancel, errCh: errCh}
	t.Cleanup(func() { _ = rs.stop() })
	return rs
}

// stop はサーバーを停止し Start の戻り値を返す
func (rs *runningServer) stop() error {
	rs.cancel()
	select {
	case err, ok := <-rs.errCh:
		if !ok {
			return nil
		}
		close(rs.errCh)
		return err
	case <-time.After(3 * time.Second):
		return context.DeadlineExceeded
	}
}

// writeSelfSignedCert は127.0.0.1向けの自己署名証明書と秘密鍵を書き出す
func writeSelfSignedCert(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "devhttpd test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "privkey.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}
