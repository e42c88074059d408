package vault

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	fakeToken    = "s.fake-token"
	expiredToken = "s.expired-token"
	fakeRoleID   = "role-123"
	fakeSecretID = "secret-456"
)

// fakeVaultServer emulates the handful of Vault endpoints the client uses:
// AppRole login, token lookup and a KV v2 mount at "secret".
type fakeVaultServer struct {
	*httptest.Server

	mu      sync.Mutex
	entries map[string]string
	logins  int
}

func newFakeVaultServer(t *testing.T) *fakeVaultServer {
	t.Helper()

	fv := &fakeVaultServer{entries: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", fv.handleLogin)
	mux.HandleFunc("/v1/auth/token/lookup-self", fv.handleLookupSelf)
	mux.HandleFunc("/v1/secret/data/", fv.authorized(fv.handleData))
	mux.HandleFunc("/v1/secret/metadata/", fv.authorized(fv.handleMetadata))

	fv.Server = httptest.NewServer(mux)
	t.Cleanup(fv.Close)

	return fv
}

func (fv *fakeVaultServer) entry(path string) (string, bool) {
	fv.mu.Lock()
	defer fv.mu.Unlock()
	v, ok := fv.entries[path]
	return v, ok
}

func (fv *fakeVaultServer) loginCount() int {
	fv.mu.Lock()
	defer fv.mu.Unlock()
	return fv.logins
}

func (fv *fakeVaultServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != fakeToken {
			writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"permission denied"}})
			return
		}
		next(w, r)
	}
}

func (fv *fakeVaultServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoleID   string `json:"role_id"`
		SecretID string `json:"secret_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{err.Error()}})
		return
	}

	if body.RoleID != fakeRoleID || body.SecretID != fakeSecretID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"invalid role or secret ID"}})
		return
	}

	fv.mu.Lock()
	fv.logins++
	fv.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"auth": map[string]any{
			"client_token":   fakeToken,
			"lease_duration": 3600,
			"renewable":      true,
		},
	})
}

func (fv *fakeVaultServer) handleLookupSelf(w http.ResponseWriter, r *http.Request) {
	ttl := 0
	switch r.Header.Get("X-Vault-Token") {
	case fakeToken:
		ttl = 3600
	case expiredToken:
	default:
		writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"permission denied"}})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":  r.Header.Get("X-Vault-Token"),
			"ttl": ttl,
		},
	})
}

func (fv *fakeVaultServer) handleData(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/")

	switch r.Method {
	case http.MethodGet:
		value, ok := fv.entry(path)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"data":     map[string]any{"value": value},
				"metadata": map[string]any{"version": 1},
			},
		})
	case http.MethodPut, http.MethodPost:
		var body struct {
			Data map[string]string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{err.Error()}})
			return
		}
		fv.mu.Lock()
		fv.entries[path] = body.Data["value"]
		fv.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"version": 1}})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (fv *fakeVaultServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/secret/metadata/")

	fv.mu.Lock()
	delete(fv.entries, path)
	fv.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
