package server

import (
	"log/slog"
	"net/http"

	"github.com/raterudder/glowmeter/pkg/log"
)

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.platform.States())
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sens, ok := s.platform.Sensor(id)
	if !ok {
		log.Ctx(r.Context()).DebugContext(r.Context(), "unknown sensor", slog.String("id", id))
		writeJSONError(w, "sensor not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sens.State())
}
