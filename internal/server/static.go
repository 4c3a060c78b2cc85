package server

import (
	"bytes"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// indexFiles はディレクトリ要求時に優先して返すファイル
var indexFiles = []string{"index.html", "index.htm"}

// FileHandler は配信ルート配下の静的ファイルを返す
type FileHandler struct {
	root string
}

// NewFileHandler は新しいFileHandlerを作成する
func NewFileHandler(root string) *FileHandler {
	return &FileHandler{root: root}
}

// Handle はginのハンドラ
func (h *FileHandler) Handle(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead:
	default:
		c.String(http.StatusNotImplemented, "Unsupported method (%q)", c.Request.Method)
		return
	}

	urlPath := c.Request.URL.Path
	name := h.resolve(urlPath)

	info, err := os.Stat(name)
	if err != nil {
		notFound(c)
		return
	}

	if !info.IsDir() {
		// ファイルに末尾スラッシュは付かない
		if strings.HasSuffix(urlPath, "/") {
			notFound(c)
			return
		}
		h.serveFile(c, name)
		return
	}

	// ディレクトリは末尾スラッシュ付きへリダイレクト
	if !strings.HasSuffix(urlPath, "/") {
		target := url.URL{Path: path.Clean("/"+urlPath) + "/", RawQuery: c.Request.URL.RawQuery}
		c.Redirect(http.StatusMovedPermanently, target.String())
		return
	}

	for _, index := range indexFiles {
		candidate := filepath.Join(name, index)
		if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			h.serveFile(c, candidate)
			return
		}
	}

	h.serveListing(c, name, urlPath)
}

// resolve はURLパスを配信ルート配下のファイルパスに変換する
// path.Clean でルートより上には出られない
func (h *FileHandler) resolve(urlPath string) string {
	clean := path.Clean("/" + urlPath)
	return filepath.Join(h.root, filepath.FromSlash(clean))
}

// serveFile はファイルの内容を返す
func (h *FileHandler) serveFile(c *gin.Context, name string) {
	f, err := os.Open(name)
	if err != nil {
		notFound(c)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		notFound(c)
		return
	}

	ctype, err := contentType(name, f)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read file")
		return
	}
	c.Header("Content-Type", ctype)

	http.ServeContent(c.Writer, c.Request, filepath.Base(name), info.ModTime(), f)
}

// contentType は拡張子からContent-Typeを決め、不明なら中身から判定する
func contentType(name string, f io.ReadSeeker) (string, error) {
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		return ctype, nil
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

// serveListing はディレクトリ一覧を返す
func (h *FileHandler) serveListing(c *gin.Context, dir, urlPath string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		notFound(c)
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	page := listingPage{
		Path:    urlPath,
		Entries: make([]listingEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		page.Entries = append(page.Entries, newListingEntry(entry))
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, page); err != nil {
		c.String(http.StatusInternalServerError, "Failed to render directory listing")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// newListingEntry は一覧の1行を作る
// ディレクトリは "/"、シンボリックリンクは "@" を付けて表示する
func newListingEntry(entry fs.DirEntry) listingEntry {
	name := entry.Name()
	display, href := name, url.PathEscape(name)

	switch {
	case entry.IsDir():
		display += "/"
		href += "/"
	case entry.Type()&fs.ModeSymlink != 0:
		display += "@"
	}

	return listingEntry{Href: href, Name: display}
}

// notFound は404を返す
func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, "File not found")
}
