package muxhandlers

import (
	"errors"
	"io/fs"
	"net/http"
	"path"

	"github.com/vitalvas/routetree/mux"
)

// ErrStaticFilesNoFS is returned when StaticFilesConfig.FS is nil.
var ErrStaticFilesNoFS = errors.New("static files: file system must not be nil")

// ErrStaticFilesNoIndexHTML is returned when SPAFallback is enabled
// but the file system does not contain an index.html at the root.
var ErrStaticFilesNoIndexHTML = errors.New("static files: index.html is required when SPA fallback is enabled")

// StaticFilesConfig configures the static file handler.
type StaticFilesConfig struct {
	// FS is the file system to serve files from. Required.
	// Works with os.DirFS, embed.FS, and any fs.FS implementation.
	FS fs.FS

	// Param names the wildcard parameter holding the file path, e.g.
	// "filepath" for a route registered as "/static/*filepath". Defaults
	// to "*", the key of an unnamed wildcard. Outside a matched route the
	// request path is used.
	Param string

	// EnableDirectoryListing allows directory contents to be listed
	// when no index.html is present. Disabled by default.
	EnableDirectoryListing bool

	// SPAFallback serves the root index.html for any path that does
	// not match an existing file, so that client-side routers handle all
	// routes. Requires index.html at the root of FS.
	SPAFallback bool
}

// noDirListingFS reports directories without an index.html as missing, so
// they are answered with 404 instead of a listing.
type noDirListingFS struct {
	fs fs.FS
}

func (n *noDirListingFS) Open(name string) (fs.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if !stat.IsDir() {
		return f, nil
	}

	if _, err := fs.Stat(n.fs, path.Join(name, "index.html")); err != nil {
		f.Close()
		return nil, fs.ErrNotExist
	}

	return f, nil
}

// spaFallbackFS opens the root index.html for every missing name.
type spaFallbackFS struct {
	fs fs.FS
}

func (s *spaFallbackFS) Open(name string) (fs.File, error) {
	f, err := s.fs.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.fs.Open("index.html")
	}

	return f, err
}

// StaticFilesHandler returns an http.Handler that serves files from the
// provided file system. It is a terminal handler meant for wildcard
// routes:
//
//	h, _ := muxhandlers.StaticFilesHandler(muxhandlers.StaticFilesConfig{
//	    FS:    os.DirFS("public"),
//	    Param: "filepath",
//	})
//	r.Handle(http.MethodGet, "/assets/*filepath", h)
//	r.Handle(http.MethodGet, "/assets", h)
func StaticFilesHandler(cfg StaticFilesConfig) (http.Handler, error) {
	if cfg.FS == nil {
		return nil, ErrStaticFilesNoFS
	}

	if cfg.SPAFallback {
		if _, err := fs.Stat(cfg.FS, "index.html"); err != nil {
			return nil, ErrStaticFilesNoIndexHTML
		}
	}

	fileSystem := cfg.FS

	if !cfg.EnableDirectoryListing {
		fileSystem = &noDirListingFS{fs: fileSystem}
	}

	if cfg.SPAFallback {
		fileSystem = &spaFallbackFS{fs: fileSystem}
	}

	param := cfg.Param
	if param == "" {
		param = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path
		if mux.CurrentRoute(r) != nil {
			name = mux.RouteParams(r).ByName(param)
		}

		// path.Clean on a rooted name cannot climb above the root.
		http.ServeFileFS(w, r, fileSystem, path.Clean("/"+name))
	}), nil
}
