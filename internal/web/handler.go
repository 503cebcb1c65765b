// Package web serves the host dashboard over HTTP.
// Each request mounts a fresh dashboard, renders it and unmounts it.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hostdesk/internal/dashboard"
	"hostdesk/internal/datetime"
	"hostdesk/internal/metrics"
	"hostdesk/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.gohtml"))

// Exporter writes a month of journal entries as xlsx.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, month string, loc *time.Location) error
}

// Options configures a Handler. Zero values are valid.
type Options struct {
	Clock       datetime.Clock
	Location    *time.Location
	LoadTimeout time.Duration
	Events      dashboard.EventPublisher
	Journal     Exporter
	Metrics     *metrics.Metrics
	Logger      *zerolog.Logger
}

type Handler struct {
	api  dashboard.API
	opts Options
	log  *zerolog.Logger
}

func NewHandler(api dashboard.API, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = datetime.SystemClock(opts.Location)
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{api: api, opts: opts, log: logger}
}

// Routes returns the router for the dashboard pages and JSON view.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})

	r.Route("/dashboard", func(dr chi.Router) {
		dr.Get("/", h.ServeDashboard)
		dr.Get("/previous", h.ServePrevious)
		dr.Get("/next", h.ServeNext)
		dr.Get("/today", h.ServeToday)
		dr.Get("/tables/{tableID}/finish", h.ServeConfirmFinish)
		dr.Post("/tables/{tableID}/finish", h.HandleFinish)
	})

	r.Get("/api/dashboard", h.ServeDashboardJSON)
	r.Get("/journal/export.xlsx", h.ServeJournalExport)

	return r
}

func (h *Handler) newDashboard(opts ...dashboard.Option) *dashboard.Dashboard {
	base := []dashboard.Option{
		dashboard.WithClock(h.opts.Clock),
		dashboard.WithLogger(h.log),
		dashboard.WithMetrics(h.opts.Metrics),
		dashboard.WithLoadTimeout(h.opts.LoadTimeout),
	}
	if h.opts.Events != nil {
		base = append(base, dashboard.WithEvents(h.opts.Events))
	}
	return dashboard.New(h.api, append(base, opts...)...)
}

// dateParam returns the date query value, today when absent.
func (h *Handler) dateParam(r *http.Request) (string, bool) {
	date := strings.TrimSpace(r.FormValue("date"))
	if date == "" {
		return datetime.Today(h.opts.Clock), true
	}
	return date, datetime.Valid(date)
}

// load mounts a dashboard for date and returns its settled view.
func (h *Handler) load(ctx context.Context, date string) dashboard.View {
	d := h.newDashboard()
	d.Mount(ctx, date)
	defer d.Unmount()
	if err := d.Wait(ctx); err != nil {
		h.log.Debug().Err(err).Str("date", date).Msg("dashboard wait interrupted")
	}
	return d.View()
}

type dashboardPage struct {
	View         dashboard.View
	ErrorMessage string
	PreviousURL  string
	NextURL      string
	TodayURL     string
}

// ServeDashboard renders the dashboard page.
// GET /dashboard?date=YYYY-MM-DD
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("dashboard")

	date, ok := h.dateParam(r)
	if !ok {
		http.Error(w, datetime.ErrInvalidDate.Error(), http.StatusBadRequest)
		return
	}

	view := h.load(r.Context(), date)
	page := dashboardPage{
		View:        view,
		PreviousURL: "/dashboard/previous?date=" + url.QueryEscape(date),
		NextURL:     "/dashboard/next?date=" + url.QueryEscape(date),
		TodayURL:    "/dashboard/today",
	}
	if view.Error != nil {
		page.ErrorMessage = view.Error.Error()
	}
	h.render(w, "dashboard", page)
}

// ServePrevious redirects to the day before date.
// GET /dashboard/previous?date=YYYY-MM-DD
func (h *Handler) ServePrevious(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("dashboard_previous")
	h.navigate(w, r, func(d *dashboard.Dashboard, date string) error { return d.PreviousDay(date) })
}

// ServeNext redirects to the day after date.
// GET /dashboard/next?date=YYYY-MM-DD
func (h *Handler) ServeNext(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("dashboard_next")
	h.navigate(w, r, func(d *dashboard.Dashboard, date string) error { return d.NextDay(date) })
}

// ServeToday redirects to the current day.
// GET /dashboard/today
func (h *Handler) ServeToday(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("dashboard_today")
	h.navigate(w, r, func(d *dashboard.Dashboard, _ string) error {
		d.Today()
		return nil
	})
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(*dashboard.Dashboard, string) error) {
	date, ok := h.dateParam(r)
	if !ok {
		http.Error(w, datetime.ErrInvalidDate.Error(), http.StatusBadRequest)
		return
	}

	var location string
	d := h.newDashboard(dashboard.WithNavigator(dashboard.NavigatorFunc(func(loc string) { location = loc })))
	if err := move(d, date); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

type confirmPage struct {
	TableID int64
	Date    string
	Lines   []string
}

// ServeConfirmFinish asks the host to confirm finishing a table.
// GET /dashboard/tables/{tableID}/finish?date=YYYY-MM-DD
func (h *Handler) ServeConfirmFinish(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("finish_confirm")

	tableID, err := tableIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, ok := h.dateParam(r)
	if !ok {
		http.Error(w, datetime.ErrInvalidDate.Error(), http.StatusBadRequest)
		return
	}

	h.render(w, "confirm", confirmPage{
		TableID: tableID,
		Date:    date,
		Lines:   strings.Split(dashboard.FinishPrompt, "\n"),
	})
}

// HandleFinish finishes a table when confirm=yes and returns to the dashboard.
// POST /dashboard/tables/{tableID}/finish
func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("finish")

	tableID, err := tableIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, ok := h.dateParam(r)
	if !ok {
		http.Error(w, datetime.ErrInvalidDate.Error(), http.StatusBadRequest)
		return
	}

	confirmed := r.FormValue("confirm") == "yes"
	d := h.newDashboard(dashboard.WithConfirmer(dashboard.ConfirmFunc(func(context.Context, string) bool {
		return confirmed
	})))
	d.Mount(r.Context(), date)
	defer d.Unmount()
	// Failures are logged by the dashboard and not shown to the host.
	_, _ = d.FinishReservation(r.Context(), tableID)

	http.Redirect(w, r, dashboard.Location(date), http.StatusSeeOther)
}

type dashboardJSON struct {
	Date         string               `json:"date"`
	Reservations []models.Reservation `json:"reservations"`
	Tables       []models.Table       `json:"tables"`
	Error        string               `json:"error,omitempty"`
}

// ServeDashboardJSON returns the dashboard view as JSON.
// GET /api/dashboard?date=YYYY-MM-DD
func (h *Handler) ServeDashboardJSON(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("dashboard_json")

	date, ok := h.dateParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, datetime.ErrInvalidDate.Error())
		return
	}

	view := h.load(r.Context(), date)
	resp := dashboardJSON{
		Date:         view.Date,
		Reservations: view.Reservations,
		Tables:       view.Tables,
	}
	if view.Error != nil {
		resp.Error = view.Error.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": resp})
}

// ServeJournalExport downloads a month of host actions.
// GET /journal/export.xlsx?month=YYYY-MM
func (h *Handler) ServeJournalExport(w http.ResponseWriter, r *http.Request) {
	h.opts.Metrics.IncHTTP("journal_export")

	if h.opts.Journal == nil {
		writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = h.opts.Clock().Format("2006-01")
	}

	var buf bytes.Buffer
	if err := h.opts.Journal.Export(r.Context(), &buf, month, h.opts.Location); err != nil {
		h.log.Warn().Err(err).Str("month", month).Msg("journal export failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="journal-`+month+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func tableIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "tableID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid table_id: %q", raw)
	}
	return id, nil
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
