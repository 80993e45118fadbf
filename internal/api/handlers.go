package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleHealth handles health check
func (s *DebugServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// HandleStatus returns a snapshot of the simulated device state.
func (s *DebugServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.state.Snapshot())
}

// HandleConfig returns the effective operating parameters. 不回显 NATS 凭据
func (s *DebugServer) HandleConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"server":            s.config.Server,
		"interval":          s.config.Interval,
		"readings":          s.config.Readings,
		"motionDuration":    s.config.MotionDuration,
		"motionInterval":    s.config.MotionInterval,
		"updateDuration":    s.config.UpdateDuration,
		"updateInterval":    s.config.UpdateInterval,
		"updateFailureRate": s.config.UpdateFailureRate,
		"dropRate":          s.config.DropRate,
		"location":          s.config.Location.Type,
		"rat":               s.config.RAT,
	})
}

// respondJSON writes a JSON response
func (s *DebugServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
