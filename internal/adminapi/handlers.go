package adminapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/breadcrumb"
	"github.com/matthewbaird/backoffice/internal/controller"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/meta"
	"github.com/matthewbaird/backoffice/internal/registry"
	"github.com/matthewbaird/backoffice/internal/relation"
	"github.com/matthewbaird/backoffice/internal/render"
)

// MenuEntry is one navigation item.
type MenuEntry struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Href  string `json:"href"`
	Icon  string `json:"icon,omitempty"`
}

// ConfigResponse is everything a client needs to build an entity's table
// and forms.
type ConfigResponse struct {
	Path      string                           `json:"path"`
	Href      string                           `json:"href"`
	Config    meta.EntityConfig                `json:"config"`
	Columns   []render.Column                  `json:"columns"`
	Form      []render.FormField               `json:"form"`
	Relations map[string]relation.Presentation `json:"relations,omitempty"`
}

// RowsResponse is a rendered page of items.
type RowsResponse struct {
	Columns []render.Column `json:"columns"`
	Rows    []render.Row    `json:"rows"`
	Meta    *crud.PageMeta  `json:"meta,omitempty"`
}

// OptionsResponse lists the choices of an option or relation field.
type OptionsResponse struct {
	Field        string                `json:"field"`
	Presentation relation.Presentation `json:"presentation,omitempty"`
	Options      []meta.Option         `json:"options"`
}

// BulkRequest names the items a bulk action applies to.
type BulkRequest struct {
	IDs []string `json:"ids"`
}

// BulkResponse reports the outcome per item.
type BulkResponse struct {
	Done   []string          `json:"done"`
	Failed map[string]string `json:"failed,omitempty"`
}

func (s *Server) menu(w http.ResponseWriter, r *http.Request) {
	entries := s.reg.Menu()
	out := make([]MenuEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, MenuEntry{Path: e.Path, Title: e.Title(), Href: e.Href, Icon: e.Icon})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) breadcrumbs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, breadcrumb.Derive(r.URL.Query().Get("path"), s.reg, s.labels))
}

// entity resolves the {entity} route parameter and the parent scope: the
// {parentID} segment of a nested route, or else the query parameter named
// by the entity's RouteParam.
func (s *Server) entity(w http.ResponseWriter, r *http.Request) (*registry.RegisteredEntity, *controller.Controller, bool) {
	path := chi.URLParam(r, "entity")
	e, ok := s.reg.Lookup(path)
	if !ok || e.Controller == nil {
		s.writeError(w, apperr.NewNotFound("entity", path))
		return nil, nil, false
	}
	ctrl := e.Controller
	parentID := chi.URLParam(r, "parentID")
	if parentID != "" && e.Config.Parent == nil {
		s.writeError(w, apperr.NewValidation("parentID", path+" has no parent entity"))
		return nil, nil, false
	}
	if parentID == "" {
		if param := routeParam(e.Config); param != "" {
			parentID = r.URL.Query().Get(param)
		}
	}
	if parentID != "" {
		ctrl = ctrl.WithParent(parentID)
	}
	return e, ctrl, true
}

func routeParam(cfg meta.EntityConfig) string {
	if cfg.Parent == nil {
		return ""
	}
	return cfg.Parent.RouteParam
}

// listFilters reads the list filters of r. The parent route parameter is
// a scope, not a field filter.
func listFilters(r *http.Request, cfg meta.EntityConfig) crud.Filters {
	f := filtersFromQuery(r)
	if param := routeParam(cfg); param != "" && param != cfg.Parent.Key {
		delete(f, param)
	}
	return f
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) {
	e, _, ok := s.entity(w, r)
	if !ok {
		return
	}
	cfg := e.Config
	resp := ConfigResponse{
		Path:    e.Path,
		Href:    e.Href,
		Config:  cfg,
		Columns: render.Columns(&cfg, s.formatter),
		Form:    render.FormFields(&cfg),
	}
	for _, f := range cfg.Fields {
		if f.Kind != meta.KindRelation {
			continue
		}
		if resp.Relations == nil {
			resp.Relations = make(map[string]relation.Presentation)
		}
		resp.Relations[f.Key] = relation.PresentationOf(f)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, ctrl.Pending())
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) {
	e, _, ok := s.entity(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "field")
	f, ok := e.Config.Field(key)
	if !ok {
		s.writeError(w, apperr.NewNotFound("field", key))
		return
	}
	resp := OptionsResponse{Field: f.Key, Options: f.Options}
	if f.Kind == meta.KindRelation {
		opts, err := s.resolver.Options(r.Context(), f)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Options = opts
		resp.Presentation = relation.PresentationOf(f)
	}
	if resp.Options == nil {
		resp.Options = []meta.Option{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) rows(w http.ResponseWriter, r *http.Request) {
	e, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	res, err := ctrl.List(r.Context(), listFilters(r, e.Config))
	if err != nil {
		s.writeError(w, err)
		return
	}
	cfg := e.Config
	recs := make([]crud.Record, len(res.Data))
	for i, rec := range res.Data {
		// Cached results are shared; computed values go on a copy.
		recs[i] = accessor.Clone(rec)
		for _, err := range s.eval.Compute(&cfg, recs[i]) {
			s.log.Debug("computed field skipped", zap.String("entity", e.Path), zap.Error(err))
		}
	}
	cols := render.Columns(&cfg, s.formatter)
	s.writeJSON(w, http.StatusOK, RowsResponse{Columns: cols, Rows: render.Rows(cols, recs), Meta: res.Meta})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	e, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	res, err := ctrl.List(r.Context(), listFilters(r, e.Config))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	e, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	var body crud.Record
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	cfg := e.Config
	item, err := formPayload(&cfg, body, false, ctrl.ParentID() != "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := ctrl.Create(r.Context(), item)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	e, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	var body crud.Record
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	cfg := e.Config
	patch, err := formPayload(&cfg, body, true, ctrl.ParentID() != "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := ctrl.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// createRaw and updateRaw store the body as sent, without form mapping.
func (s *Server) createRaw(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	var body crud.Record
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := ctrl.Create(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updateRaw(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	var body crud.Record
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := ctrl.Update(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	if err := ctrl.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bulk runs a bulk action item by item. Only the built-in delete action
// is executed server-side.
func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	e, ctrl, ok := s.entity(w, r)
	if !ok {
		return
	}
	action := chi.URLParam(r, "action")
	if !e.Config.Actions.Bulk && !declaresBulk(e.Config, action) {
		s.writeError(w, apperr.NewForbidden("bulk "+action, e.Path))
		return
	}
	if action != "delete" {
		s.writeError(w, apperr.NewValidation("action", "unsupported bulk action "+action))
		return
	}
	var req BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp := BulkResponse{Done: []string{}}
	for _, id := range req.IDs {
		if err := ctrl.Delete(r.Context(), id); err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[id] = err.Error()
			continue
		}
		resp.Done = append(resp.Done, id)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func declaresBulk(cfg meta.EntityConfig, action string) bool {
	for _, b := range cfg.BulkActions {
		if b.Name == action {
			return true
		}
	}
	return false
}

// formPayload maps a submitted body through the entity's form fields.
// Unknown, read-only and computed keys are dropped. Blank values count as
// absent. On create, required visible fields must be present; the parent
// key is exempt when the route supplies it. On update, a blank optional
// field is cleared.
func formPayload(cfg *meta.EntityConfig, body crud.Record, partial, scoped bool) (crud.Record, error) {
	out := crud.Record{}
	parentKey := ""
	if scoped && cfg.Parent != nil {
		parentKey = cfg.Parent.Key
	}
	for _, ff := range render.FormFields(cfg) {
		if ff.ReadOnly || ff.Field.Computed {
			continue
		}
		v, present := accessor.Get(body, ff.Key)
		if present && !isBlank(v) {
			if err := ff.Write(out, v); err != nil {
				return nil, apperr.NewValidation(ff.Key, err.Error())
			}
			continue
		}
		required := ff.Required && ff.Key != parentKey && ff.Archetype != render.ArchetypeToggle
		switch {
		case required && !partial && ff.Visible(body):
			return nil, apperr.NewValidation(ff.Key, "is required")
		case required && partial && present:
			return nil, apperr.NewValidation(ff.Key, "cannot be empty")
		case partial && present:
			accessor.Set(out, ff.Key, nil)
		}
	}
	return out, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
