package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// resolve maps a URL path to a file under root: directories serve their
// index.html, and extensionless paths try "<path>.html" then "<path>/index.html".
func (s *Server) resolve(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	rel := strings.TrimPrefix(clean, "/")
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	var candidates []string
	if rel == "" || strings.HasSuffix(urlPath, "/") {
		candidates = append(candidates, filepath.Join(full, "index.html"))
	} else {
		candidates = append(candidates, full)
		if path.Ext(rel) == "" {
			candidates = append(candidates, full+".html")
		}
		candidates = append(candidates, filepath.Join(full, "index.html"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("open failed", zap.String("path", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotImplemented, "build history not enabled")
		return
	}
	last, err := s.history.LastBuild(r.Context())
	if err != nil {
		s.logger.Error("status: last build failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if last == nil {
		s.respondError(w, http.StatusNotFound, "no builds recorded")
		return
	}
	s.respondJSON(w, http.StatusOK, last)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuild == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild not enabled")
		return
	}
	report, err := s.rebuild(r.Context())
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
