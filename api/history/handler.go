// Package history exposes recorded simulation steps via GET /api/history.
package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/evgrid/core/history"
)

// MaxLimit caps the number of records returned by one request.
const MaxLimit = 1000

// NewHandler returns an HTTP handler exposing history records via GET /api/history.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
//
// Query parameters: run_id, kind, start and end (RFC3339), limit.
func NewHandler(store history.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []history.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (history.Query, error) {
	v := r.URL.Query()
	q := history.Query{
		RunID: v.Get("run_id"),
		Kind:  history.Kind(v.Get("kind")),
		Limit: MaxLimit,
	}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		if n > 0 && n < MaxLimit {
			q.Limit = n
		}
	}
	return q, nil
}
