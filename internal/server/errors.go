package server

import "errors"

var (
	// ErrBind はポートが使用中、またはホストが不正でリッスンできない
	ErrBind = errors.New("リッスンに失敗しました")

	// ErrTLSConfig は証明書・秘密鍵が読み込めない
	ErrTLSConfig = errors.New("TLS設定が不正です")

	// ErrBrowserLaunch はブラウザを開けない。起動は継続する
	ErrBrowserLaunch = errors.New("ブラウザを開けませんでした")
)
