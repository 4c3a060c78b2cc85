// Package server は、Webページ手動テスト用の静的ファイルHTTP(S)サーバーです。
//
// このパッケージは、リスナーの作成とTLS化、静的ファイルの配信、
// CORSヘッダーの付与、起動バナーの表示を担当します。
//
// 責務:
//   - host:port でのリッスンと、証明書がある場合のTLS化
//   - 配信ルート配下のファイル・ディレクトリ一覧の配信
//   - 全レスポンスへのCORSヘッダー付与とプリフライト応答
//   - 1リクエスト1行のアクセスログ
//   - 起動時のブラウザ起動 (失敗しても継続)
//
// 仕様:
//   - HTTPエンジンはgin-gonic/ginを使用
//   - 接続は1本ずつ受け付け、キープアライブは無効
//   - コンテキストのキャンセルでグレースフルシャットダウン
package server
