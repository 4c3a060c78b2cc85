package server

import (
	"embed"
	"html/template"
)

//go:embed templates/listing.html
var templatesFS embed.FS

// listingTemplate はディレクトリ一覧のテンプレート
var listingTemplate = template.Must(template.ParseFS(templatesFS, "templates/listing.html"))

// listingEntry はディレクトリ一覧の1行
type listingEntry struct {
	Href string
	Name string
}

// listingPage はディレクトリ一覧ページ
type listingPage struct {
	Path    string
	Entries []listingEntry
}
