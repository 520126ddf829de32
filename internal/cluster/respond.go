package cluster

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// WriteResult writes {"result": v} with the given status.
// A nil v is encoded as a null result.
func WriteResult(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "encode result")
		return
	}
	write(w, status, Response{Result: raw})
}

// WriteError writes {"result": null, "error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	write(w, status, Response{Result: json.RawMessage("null"), Error: msg})
}

func write(w http.ResponseWriter, status int, env Response) {
	body, _ := json.Marshal(env)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
