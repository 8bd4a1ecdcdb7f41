package api

import (
	"net/http"
	"strconv"

	"github.com/culturearts/portal/internal/access"
)

// pathID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}

// queryID parses an optional integer query parameter. Missing means 0.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// requireID writes a 400 unless id is positive.
func requireID(w http.ResponseWriter, id int64, field string) bool {
	if id <= 0 {
		jsonError(w, http.StatusBadRequest, field+" is required")
		return false
	}
	return true
}

// targetCampus canonicalises a campus given in a request body. An empty
// campus defaults to the actor's own. The second result reports whether
// acc may write rows under that campus.
func targetCampus(policy *access.Policy, acc access.Access, raw string) (string, bool) {
	campus := policy.Canonical(raw)
	if campus == "" {
		campus = acc.Campus
	}
	return campus, acc.Allows(campus)
}
