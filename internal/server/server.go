// Package server serves the cleaned files over HTTP for the frontend.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
	"utmbindex-backend/internal/components/telemetry"
	"utmbindex-backend/internal/merge"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/internal/search"
)

const (
	report_server_data   = "server.data"
	report_server_search = "server.search"

	MaxSearchLimit = 100
)

var dataFiles = map[string]string{
	"races":      merge.CleanedRaceFile,
	"runners":    merge.CleanedRunnerFile,
	"runner_ids": merge.CleanedRunnerIDFile,
}

type Options struct {
	// DataDir holds the cleaned files.
	DataDir string
	Tel     telemetry.API
}

type Server struct {
	dataDir string
	tel     telemetry.API

	mutex   sync.Mutex
	runners []records.RunnerProfile
	modTime time.Time
}

func New(opts Options) *Server {
	if opts.Tel == nil {
		opts.Tel = telemetry.Nop{}
	}
	return &Server{
		dataDir: opts.DataDir,
		tel:     telemetry.NewScopedAPI("server", opts.Tel),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data", s.handleData)
	mux.HandleFunc("GET /runners/search", s.handleSearch)
	return allowAnyOrigin(mux)
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = "runners"
	}
	name, ok := dataFiles[kind]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid type")
		return
	}

	path := filepath.Join(s.dataDir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.tel.ReportBroken(report_server_data, err, path)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/json")
	_, err = io.Copy(w, f)
	if err != nil {
		s.tel.ReportWarning(report_server_data, err, path)
	}
}

// loadRunners rereads the cleaned runner file only when it changed since the last call.
func (s *Server) loadRunners() ([]records.RunnerProfile, error) {
	path := filepath.Join(s.dataDir, merge.CleanedRunnerFile)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.runners != nil && info.ModTime().Equal(s.modTime) {
		return s.runners, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var runners []records.RunnerProfile
	err = json.Unmarshal(contents, &runners)
	if err != nil {
		return nil, err
	}
	if runners == nil {
		runners = []records.RunnerProfile{}
	}
	s.runners = runners
	s.modTime = info.ModTime()
	return runners, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing query")
		return
	}
	limit := search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, MaxSearchLimit)
	}

	runners, err := s.loadRunners()
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.tel.ReportBroken(report_server_search, err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	matches := search.Runners(runners, query, search.Options{Limit: limit})
	if matches == nil {
		matches = []search.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}
