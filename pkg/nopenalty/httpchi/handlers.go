package httpchi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/nopenaltycalc/internal/rbac"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty"
)

// Reader is the read side of sqlstore.Store.
type Reader interface {
	ListRecords(ctx context.Context, courseID, userID int64) ([]nopenalty.Record, error)
	GetRecord(ctx context.Context, courseID, userID, itemID int64) (nopenalty.Record, error)
}

type API struct {
	Store  Reader
	Logger *zap.Logger
}

func (a *API) Routes(r chi.Router) {
	r.Get("/nopenalty/courses/{courseID}/users/{userID}", a.listRecords)
	r.Get("/nopenalty/courses/{courseID}/users/{userID}/items/{itemID}", a.getRecord)
}

// IsOwner reports whether the authenticated subject is the {userID} in the path.
func IsOwner(r *http.Request) bool {
	sub := rbac.SubjectFromContext(r.Context())
	return sub != "" && sub == chi.URLParam(r, "userID")
}

type listResp struct {
	Records []nopenalty.Record `json:"records"`
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "courseID", "userID")
	if !ok {
		return
	}
	recs, err := a.Store.ListRecords(r.Context(), ids[0], ids[1])
	if err != nil {
		a.internalError(w, "list no-penalty records", err)
		return
	}
	if recs == nil {
		recs = []nopenalty.Record{}
	}
	writeJSON(w, listResp{Records: recs})
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "courseID", "userID", "itemID")
	if !ok {
		return
	}
	rec, err := a.Store.GetRecord(r.Context(), ids[0], ids[1], ids[2])
	if errors.Is(err, nopenalty.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.internalError(w, "get no-penalty record", err)
		return
	}
	writeJSON(w, rec)
}

func pathIDs(w http.ResponseWriter, r *http.Request, names ...string) ([]int64, bool) {
	out := make([]int64, len(names))
	for i, n := range names {
		v, err := strconv.ParseInt(chi.URLParam(r, n), 10, 64)
		if err != nil || v <= 0 {
			http.Error(w, "invalid "+n, http.StatusBadRequest)
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (a *API) internalError(w http.ResponseWriter, msg string, err error) {
	if a.Logger != nil {
		a.Logger.Error(msg, zap.Error(err))
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
