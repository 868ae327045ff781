package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/naka-gawa/team-pr-stats/internal/usecase"
)

// maxBodyBytes caps the /github-stats request body.
const maxBodyBytes = 1 << 20

func (h *Handler) handleGitHubStats(w http.ResponseWriter, r *http.Request) {
	const handlerName = "github_stats"

	var req statsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.Log.Debug("invalid body", "err", err)
		h.writeError(w, handlerName, errBadRequest(msgMissingInput))
		return
	}
	if err := ValidateStatsRequest(req); err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	report, err := h.Stats.Aggregate(r.Context(), req.Usernames, req.StartDate, usecase.Options{
		IncludeSummary: req.IncludeSummary,
	})
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}
