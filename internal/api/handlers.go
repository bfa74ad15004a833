package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// HandleTag returns the tags of ?date=YYYY-MM-DD.
func (s *Server) HandleTag(w http.ResponseWriter, r *http.Request) {
	req := queryStruct(r, "date")
	out, err := s.calendar.Tag(r.Context(), req)
	if err != nil {
		writeStatus(w, err)
		return
	}
	writeJSON(w, out.AsMap())
}

// HandleTagRange returns the tags of every date in ?from=...&to=....
func (s *Server) HandleTagRange(w http.ResponseWriter, r *http.Request) {
	req := queryStruct(r, "from", "to")
	var tags []map[string]any
	err := s.calendar.eachTag(r.Context(), req, func(msg *structpb.Struct) error {
		tags = append(tags, msg.AsMap())
		return nil
	})
	if err != nil {
		writeStatus(w, err)
		return
	}
	writeJSON(w, map[string]any{"tags": tags})
}

// HandleFeatureSets lists the feature sets in the configured store.
func (s *Server) HandleFeatureSets(w http.ResponseWriter, r *http.Request) {
	if s.features == nil {
		http.Error(w, "no feature store configured", http.StatusNotFound)
		return
	}
	names, err := s.features.ListFeatureSets(r.Context())
	if err != nil {
		s.log.Error("listing feature sets", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, map[string]any{"feature_sets": names})
}

// queryStruct copies the named query parameters that are present into a
// request document.
func queryStruct(r *http.Request, names ...string) *structpb.Struct {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	q := r.URL.Query()
	for _, n := range names {
		if q.Has(n) {
			req.Fields[n] = structpb.NewStringValue(q.Get(n))
		}
	}
	return req
}

// writeStatus maps a gRPC status error onto an HTTP error response.
func writeStatus(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	code := http.StatusInternalServerError
	switch st.Code() {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.Canceled, codes.DeadlineExceeded:
		code = http.StatusRequestTimeout
	}
	http.Error(w, st.Message(), code)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing JSON response", "error", err)
	}
}
