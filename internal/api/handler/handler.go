package handler

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/iconidentify/reelrelay/internal/service"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

// Pipeline is the service surface the HTTP handlers drive.
type Pipeline interface {
	Relay(ctx context.Context, url string) (*service.RelayResult, error)
	FetchBatch(ctx context.Context, input string) (*service.BatchResult, error)
	Check(ctx context.Context, url string) (*service.CheckResult, error)
	Stats(ctx context.Context) (*service.StatsResult, error)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readField returns field from a JSON object body, or from the form when
// the request is not JSON.
func readField(w http.ResponseWriter, r *http.Request, field string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if isJSON(r) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		s, _ := body[field].(string)
		return strings.TrimSpace(s), nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.PostForm.Get(field)), nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
