package server

import (
	"fmt"
	"io"
	"strings"
)

// bannerInfo は起動バナーに表示する内容
type bannerInfo struct {
	Title    string
	Protocol string
	URL      string
	Port     int
	Root     string
	Secure   bool
}

// printBanner は起動バナーを出力する
func printBanner(w io.Writer, b bannerInfo) {
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s (%s)\n", b.Title, b.Protocol)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "サーバーアドレス: %s\n", b.URL)
	fmt.Fprintf(w, "サーバーポート: %d\n", b.Port)
	fmt.Fprintf(w, "プロトコル: %s\n", b.Protocol)
	fmt.Fprintf(w, "配信ディレクトリ: %s\n", b.Root)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "使い方:")
	fmt.Fprintln(w, "1. テスト対象ページが呼び出すAPIのURLを実際のアドレスに合わせてください")
	fmt.Fprintln(w, "2. API側もCORSリクエストを許可している必要があります")
	fmt.Fprintln(w, "3. ブラウザで上記アドレスを開いてテストを開始してください")
	if !b.Secure {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "HTTPS設定:")
		fmt.Fprintln(w, "- HTTPSを使うには TLS を有効にしてください")
		fmt.Fprintln(w, "- 証明書と秘密鍵のファイルが指定したパスに存在する必要があります")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "注意:")
	fmt.Fprintln(w, "- 開発・テスト専用のサーバーです")
	fmt.Fprintln(w, "- 本番環境では専用のWebサーバーを使用してください")
	fmt.Fprintln(w, "- Ctrl+C でサーバーを停止します")
	fmt.Fprintln(w, rule)
}
