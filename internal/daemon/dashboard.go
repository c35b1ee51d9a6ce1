package daemon

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"mediafactory/internal/api"
	"mediafactory/internal/jobs"
)

const dashboardLimit = 50

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type statusCount struct {
	Name  string
	Count int
}

type dashboardView struct {
	Jobs  []api.Job
	Stats []statusCount
	Queue api.QueueStats
}

func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.daemon.service.List(ctx, api.ListRequest{Limit: dashboardLimit})
	if err != nil {
		h.writeError(w, err)
		return
	}
	stats, err := h.daemon.service.Stats(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view := dashboardView{Jobs: list, Queue: stats.Queue}
	for _, status := range jobs.AllStatuses() {
		view.Stats = append(view.Stats, statusCount{Name: string(status), Count: stats.Jobs[string(status)]})
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, view); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
