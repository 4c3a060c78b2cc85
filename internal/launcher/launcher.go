// Package launcher はサーバーURLを既定のブラウザで開く処理を提供します。
package launcher

import (
	"github.com/pkg/browser"
)

// Opener はURLを開く
type Opener interface {
	Open(url string) error
}

// OpenerFunc は関数を Opener として扱うアダプタ
type OpenerFunc func(url string) error

// Open は f(url) を呼び出す
func (f OpenerFunc) Open(url string) error {
	return f(url)
}

// System はOSの仕組み (xdg-open / open / rundll32) で既定のブラウザを開く
type System struct{}

// Open はURLを既定のブラウザで開く
func (System) Open(url string) error {
	return browser.OpenURL(url)
}

// Disabled は何もしない Opener
var Disabled Opener = OpenerFunc(func(string) error { return nil })

// New は設定に応じた Opener を返す
func New(open bool) Opener {
	if open {
		return System{}
	}
	return Disabled
}
