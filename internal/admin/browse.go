package admin

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// cacheBrowser serves a directory listing or raw file contents rooted
// at root, ported from the original daemon's resolve_under_root guard:
// a requested path is resolved and re-checked against the canonical
// root so that "../" segments (or a symlink escape) can never serve a
// file outside the cache directory.
func cacheBrowser(root string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		full, err := resolveUnderRoot(root, r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		fi, err := os.Stat(full)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		if fi.IsDir() {
			renderDirListing(w, full, r.URL.Path)
			return
		}

		data, err := os.ReadFile(full)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", mimetype.Detect(data).String())
		w.Write(data)
	}
}

// resolveUnderRoot joins tail onto root and rejects the result unless it
// canonicalizes to a path still rooted at root.
func resolveUnderRoot(root, tail string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootCanon, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(rootAbs, filepath.FromSlash(strings.TrimPrefix(tail, "/")))

	full := joined
	if canon, err := filepath.EvalSymlinks(joined); err == nil {
		full = canon
	}

	if full != rootCanon && !strings.HasPrefix(full, rootCanon+string(filepath.Separator)) {
		return "", errors.New("path escapes outside cache root")
	}
	return joined, nil
}

type dirEntry struct {
	name  string
	isDir bool
}

func renderDirListing(w http.ResponseWriter, dirPath, tail string) {
	f, err := os.Open(dirPath)
	if err != nil {
		http.NotFound(w, nil)
		return
	}
	defer f.Close()

	infos, err := f.ReadDir(-1)
	if err != nil {
		http.Error(w, "error reading directory", http.StatusInternalServerError)
		return
	}

	entries := make([]dirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, dirEntry{name: info.Name(), isDir: info.IsDir()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
	})

	tailNorm := strings.TrimPrefix(tail, "/")
	base := "/cache/" + strings.TrimSuffix(tailNorm, "/")
	base = strings.TrimSuffix(base, "/")

	var b strings.Builder
	b.WriteString("<!doctype html><meta charset=utf-8>")
	b.WriteString("<style>body{font:14px system-ui;margin:2rem} a{text-decoration:none} .dir{font-weight:600}</style>")
	fmt.Fprintf(&b, "<h1>Index of /%s</h1><ul>", html.EscapeString(tailNorm))

	if t := strings.TrimSuffix(tailNorm, "/"); t != "" {
		parentHref := "/cache/"
		if idx := strings.LastIndex(t, "/"); idx > 0 {
			parentHref = "/cache/" + t[:idx] + "/"
		}
		fmt.Fprintf(&b, "<li><a class='dir' href='%s'>../</a></li>", parentHref)
	}

	for _, e := range entries {
		href := base + "/" + url.PathEscape(e.name)
		display := e.name
		class := ""
		if e.isDir {
			href += "/"
			display += "/"
			class = " class='dir'"
		}
		fmt.Fprintf(&b, "<li><a%s href='%s'>%s</a></li>", class, href, html.EscapeString(display))
	}
	b.WriteString("</ul>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(b.String()))
}
