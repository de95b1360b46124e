// Package backendtest provides an in-process stand-in for the scoring and vault
// backend, for use in tests.
package backendtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Server is a fake backend with scriptable login replies and an in-memory vault.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	loginReply  map[string]any
	loginStatus int
	logins      []map[string]any
	vault       map[string][]byte
	failVault   bool
}

// New starts a fake backend and closes it with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		loginReply:  map[string]any{"status": "success"},
		loginStatus: http.StatusOK,
		vault:       map[string][]byte{},
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// ReplyLogin sets the JSON body returned by POST /login.
func (s *Server) ReplyLogin(status int, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
	s.loginReply = body
}

// Logins returns the decoded bodies received by POST /login.
func (s *Server) Logins() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.logins...)
}

// Store puts an artifact in the vault.
func (s *Server) Store(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vault[name] = data
}

// Artifact returns the plaintext stored under name.
func (s *Server) Artifact(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.vault[name]
	return data, ok
}

// FailVault makes vault endpoints answer with a failure status.
func (s *Server) FailVault(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failVault = fail
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/encrypt-file", s.handleEncrypt).Methods(http.MethodPost)
	r.HandleFunc("/vault-list", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/decrypt-file", s.handleDecrypt).Methods(http.MethodPost)
	return r
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "msg": err.Error()})
		return
	}
	s.mu.Lock()
	s.logins = append(s.logins, body)
	status, reply := s.loginStatus, s.loginReply
	s.mu.Unlock()
	writeJSON(w, status, reply)
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	if s.vaultFailing() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "msg": "vault locked"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "failed", "msg": "no file"})
		return
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "failed", "msg": err.Error()})
		return
	}
	name := header.Filename + ".enc"
	s.Store(name, data)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "vault_filename": name})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	if s.vaultFailing() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "msg": "vault locked"})
		return
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.vault))
	for name := range s.vault {
		if strings.HasSuffix(name, ".enc") {
			names = append(names, name)
		}
	}
	s.mu.Unlock()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "files": names})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VaultFilename string `json:"vault_filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "bad request"})
		return
	}
	data, ok := s.Artifact(body.VaultFilename)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": "File not found"})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) vaultFailing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failVault
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
