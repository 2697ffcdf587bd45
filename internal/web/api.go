package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/saaga0h/doorpi/internal/occupancy"
)

// ProbabilitiesResponse is the body of the probabilities endpoint
type ProbabilitiesResponse struct {
	Location       string        `json:"location"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	SlotWidth      string        `json:"slot_width"`
	Policy         string        `json:"policy"`
	BoundaryClosed bool          `json:"boundary_closed"`
	Probabilities  []interface{} `json:"probabilities"`
}

// StatusResponse is the body of the status endpoint
type StatusResponse struct {
	Location   string     `json:"location"`
	Status     string     `json:"status"`
	Closed     *bool      `json:"closed,omitempty"`
	LastChange *time.Time `json:"last_change,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleProbabilities(w http.ResponseWriter, r *http.Request) {
	location := mux.Vars(r)["location"]
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid start: %v", err))
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid end: %v", err))
		return
	}
	slots, err := strconv.Atoi(q.Get("slots"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid slots: %v", err))
		return
	}

	policy := s.policy
	if v := q.Get("policy"); v != "" {
		if policy, err = occupancy.ParseFuturePolicy(v); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	marker := s.marker
	if q.Has("future") {
		marker = parseMarker(q.Get("future"))
	}

	est, err := s.estimator.Estimate(r.Context(), location, start, end, slots, policy)
	if err != nil {
		if errors.Is(err, occupancy.ErrInvalidWindow) || errors.Is(err, occupancy.ErrWindowTooLarge) {
			s.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Failed to estimate occupancy",
			"location", location,
			"request_id", requestIDFrom(r.Context()),
			"error", err)
		s.writeError(w, r, http.StatusInternalServerError, "failed to estimate occupancy")
		return
	}

	s.writeJSON(w, http.StatusOK, ProbabilitiesResponse{
		Location:       est.Location,
		Start:          time.Unix(0, est.Start).In(s.loc),
		End:            time.Unix(0, est.End).In(s.loc),
		SlotWidth:      time.Duration(est.SlotWidth).String(),
		Policy:         est.Policy,
		BoundaryClosed: est.BoundaryClosed,
		Probabilities:  occupancy.Values(est.Slots, marker, func(p float64) interface{} { return p }),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	location := mux.Vars(r)["location"]

	st, err := s.status.Current(r.Context(), location)
	if err != nil {
		s.logger.Error("Failed to load door status",
			"location", location,
			"request_id", requestIDFrom(r.Context()),
			"error", err)
		s.writeError(w, r, http.StatusInternalServerError, "failed to load door status")
		return
	}

	resp := StatusResponse{Location: location, Status: "unknown"}
	if st.Known {
		closed := st.Closed
		since := st.Since().In(s.loc)
		resp.Closed = &closed
		resp.LastChange = &since
		resp.Status = s.statusView(st).Status
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.writeJSON(w, code, errorResponse{Error: msg, RequestID: requestIDFrom(r.Context())})
}
