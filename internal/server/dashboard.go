package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/export"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/viewmodel"
)

type dashboardVM struct {
	Viewer     model.Viewer
	Query      string
	Page       int
	TotalPages int
	PrevPage   int
	NextPage   int
	Records    []model.Accomplishment
	Empty      bool
	NoMatches  bool
	Error      string
	Form       viewmodel.Input
	FormErrors map[string]string
}

// loadRecords returns the viewer's records, from the cache when fresh.
func (s *Server) loadRecords(ctx context.Context, gw gateway.Records, viewer model.Viewer) ([]model.Accomplishment, error) {
	if rows, ok := s.cache.Get(dashboardPath, viewer.ID); ok {
		return rows, nil
	}
	rows, err := gw.ListByOwner(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(dashboardPath, viewer.ID, rows)
	return rows, nil
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, vm dashboardVM) {
	viewer, _ := ViewerFrom(r.Context())
	vm.Viewer = viewer

	q := r.URL.Query()
	vm.Query = q.Get("q")
	page, _ := strconv.Atoi(q.Get("page"))

	if vm.Error == "" {
		rows, err := s.loadRecords(r.Context(), s.gatewayFor(w, r), viewer)
		switch {
		case gateway.IsAuthError(err):
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		case err != nil:
			s.log.Warn("loading dashboard failed", zap.Error(err))
			vm.Error = "Failed to load accomplishments"
		default:
			filtered := viewmodel.Filter(rows, vm.Query)
			vm.TotalPages = viewmodel.TotalPages(len(filtered), s.cfg.PageSize)
			vm.Page = max(1, min(page, vm.TotalPages))
			vm.Records = viewmodel.Paginate(filtered, vm.Page, s.cfg.PageSize)
			vm.Empty = len(rows) == 0
			vm.NoMatches = !vm.Empty && len(filtered) == 0
			if vm.Page > 1 {
				vm.PrevPage = vm.Page - 1
			}
			if vm.Page < vm.TotalPages {
				vm.NextPage = vm.Page + 1
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "dashboard.html", vm); err != nil {
		s.log.Error("rendering template", zap.String("template", "dashboard.html"), zap.Error(err))
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, http.StatusOK, dashboardVM{})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	rows, err := s.gatewayFor(w, r).ListByOwner(r.Context(), viewer.ID)
	if gateway.IsAuthError(err) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		s.log.Warn("exporting failed", zap.Error(err))
		http.Error(w, "Failed to export accomplishments", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.now())+`"`)
	if err := export.WriteCSV(w, rows); err != nil {
		s.log.Warn("writing export failed", zap.Error(err))
		return
	}
	s.tracker.Track(analytics.ActionExport, "")
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	viewer, _ := ViewerFrom(r.Context())
	in := viewmodel.Input{
		Title:       r.PostForm.Get("title"),
		Description: r.PostForm.Get("description"),
		Date:        r.PostForm.Get("date"),
	}

	if err := viewmodel.Validate(in); err != nil {
		var vErr *viewmodel.ValidationError
		errors.As(err, &vErr)
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, dashboardVM{Form: in, FormErrors: vErr.Fields})
		return
	}

	rec, err := s.gatewayFor(w, r).Insert(r.Context(), model.NewAccomplishment{
		UserID:      viewer.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
	})
	if gateway.IsAuthError(err) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		s.log.Warn("adding accomplishment failed", zap.Error(err))
		s.renderDashboard(w, r, http.StatusBadGateway, dashboardVM{
			Form:       in,
			FormErrors: map[string]string{"form": "Failed to add accomplishment"},
		})
		return
	}

	_ = s.cache.Invalidate(dashboardPath)
	s.tracker.Track(analytics.ActionCreate, rec.Title)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	id := r.PathValue("id")

	err := s.gatewayFor(w, r).DeleteByID(r.Context(), viewer.ID, id)
	switch {
	case gateway.IsAuthError(err):
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	case errors.Is(err, gateway.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		s.log.Warn("deleting accomplishment failed", zap.String("id", id), zap.Error(err))
		http.Error(w, "Failed to delete accomplishment", http.StatusBadGateway)
		return
	}

	_ = s.cache.Invalidate(dashboardPath)
	s.tracker.Track(analytics.ActionDelete, id)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}
