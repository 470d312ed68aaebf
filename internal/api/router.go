// Package api exposes the filter actions of every registered entity over
// HTTP.
package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cast"

	"github.com/boutdepapier/dynamicfilters/internal/filters"
	"github.com/boutdepapier/dynamicfilters/pkg/log"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

const DefaultUserHeader = "X-Remote-User"

type Options struct {
	Prefix     string
	UserHeader string
	PageSize   int
	Logger     log.LoggerService
	// LogRequests writes a debug line for each handled request.
	LogRequests bool
	// Now overrides the clock of relative date filters.
	Now func() time.Time
}

type Handler struct {
	service  *filters.Service
	registry *schema.Registry
	opts     Options
	log      log.LoggerService
}

func NewHandler(service *filters.Service, registry *schema.Registry, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		service:  service,
		registry: registry,
		opts:     opts,
		log:      opts.Logger,
	}
}

// NewRouter mounts the filter routes below opts.Prefix.
func NewRouter(service *filters.Service, registry *schema.Registry, opts Options) http.Handler {
	h := NewHandler(service, registry, opts)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if opts.LogRequests {
		r.Use(h.requestLogger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/"
	}
	r.Route(prefix, func(r chi.Router) {
		r.Use(IdentityMiddleware(opts.UserHeader))
		h.Mount(r)
	})

	return r
}

// Mount registers the entity routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.Entities)
	r.Route("/{namespace}/{entity}", func(r chi.Router) {
		r.Get("/", h.Listing)
		r.Get("/save_filter/", h.SaveFilter)
		r.Post("/save_filter/", h.SaveFilter)
		r.Get("/add_filter/", h.AddFilter)
		r.Post("/add_filter/", h.AddFilter)
		r.Post("/delete_filter/{id}/", h.DeleteFilter)
		r.Post("/clear_filter/", h.ClearFilter)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), chimw.GetReqID(r.Context()))
	})
}

func (h *Handler) target(r *http.Request) filters.Target {
	userID, _ := UserFromContext(r.Context())
	namespace := chi.URLParam(r, "namespace")
	entity := chi.URLParam(r, "entity")
	return filters.Target{
		UserID:    userID,
		Namespace: namespace,
		Entity:    entity,
		ViewPath:  filters.ListingPath(h.opts.Prefix, namespace, entity),
	}
}

func (h *Handler) links(t filters.Target) filters.Links {
	return filters.NewLinks(h.opts.Prefix, t.Namespace, t.Entity, h.service.Params())
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := httpStatusFromError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed: %v", err)
	}
	writeError(w, status, err.Error())
}

type entitySummary struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	Listing   string `json:"listing"`
}

// Entities lists the registered entity types.
func (h *Handler) Entities(w http.ResponseWriter, r *http.Request) {
	entities := h.registry.Entities()
	out := make([]entitySummary, 0, len(entities))
	for _, e := range entities {
		out = append(out, entitySummary{
			Namespace: e.Namespace,
			Name:      e.Name,
			Label:     e.Label,
			Listing:   filters.ListingPath(h.opts.Prefix, e.Namespace, e.Name),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Listing renders the filtered listing of an entity.
func (h *Handler) Listing(w http.ResponseWriter, r *http.Request) {
	t := h.target(r)
	query := r.URL.Query()

	opts := filters.RequestOptions{
		Now:    h.opts.Now(),
		Limit:  h.opts.PageSize,
		Offset: queryInt(query, "offset"),
	}
	if raw := query.Get("use_filters"); raw != "" {
		opts.DisableFilters = !cast.ToBool(raw)
	}
	if limit := queryInt(query, "limit"); limit > 0 {
		opts.Limit = limit
	}

	listing, err := h.service.Listing(r.Context(), t, opts, h.links(t))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// queryInt reads a base-10 paging parameter, 0 when absent or malformed.
func queryInt(values url.Values, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
	if err != nil {
		return 0
	}
	return n
}

// SaveFilter handles preset loading, field adding and saving. It always
// answers {"success": bool, "response"?: form}.
func (h *Handler) SaveFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := h.service.SaveFilter(r.Context(), h.target(r), r.Form)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// AddFilter composes a new preset. A saved preset redirects to the listing.
func (h *Handler) AddFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := h.target(r)
	values := r.Form
	if r.Method == http.MethodGet && values.Get(h.service.Params().Add) == "" {
		values = nil
	}

	response, err := h.service.AddPreset(r.Context(), t, values)
	if err != nil {
		h.fail(w, err)
		return
	}
	if response.Created != nil {
		http.Redirect(w, r, t.ViewPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// DeleteFilter deletes a filter set of the user and redirects to the listing.
func (h *Handler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	t := h.target(r)

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "filter set not found")
		return
	}

	if err := h.service.DeletePreset(r.Context(), t.UserID, uint(id)); err != nil {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, t.ViewPath, http.StatusSeeOther)
}

// ClearFilter removes the criteria of the default filter set.
func (h *Handler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	t := h.target(r)
	if err := h.service.ClearFilter(r.Context(), t); err != nil {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, t.ViewPath, http.StatusSeeOther)
}
