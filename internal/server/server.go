package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"volunteermatch/internal/engine"
	"volunteermatch/internal/logger"
	"volunteermatch/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      *zap.Logger
	// Gatherer backs GET /metrics. The endpoint is omitted when nil.
	Gatherer prometheus.Gatherer
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the volunteer matching API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := logger.OrNop(cfg.Log)
	if cfg.Auth.Log == nil {
		cfg.Auth.Log = log
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer, requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Volunteer Match API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	registerHealth(group, cfg.Engine)
	registerJobRequests(group, cfg.Engine)
	registerInvitations(group, cfg.Engine)
	registerCandidates(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// statusForKind maps the engine's error taxonomy onto HTTP.
func statusForKind(kind string) int {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindInvalidState, engine.KindConflict:
		return http.StatusConflict
	case engine.KindInvalidArgument:
		return http.StatusBadRequest
	case engine.KindUpstream:
		return http.StatusServiceUnavailable
	case engine.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func handleError(err error) huma.StatusError {
	return handleErrorWithDetails(err, nil)
}

func handleErrorWithDetails(err error, details map[string]any) huma.StatusError {
	if err == nil {
		return nil
	}
	kind := engine.Kind(err)
	status := statusForKind(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if details == nil {
			details = map[string]any{}
		}
		details["error"] = msg
		msg = "internal error"
	}
	return newAPIError(status, kind, msg, details)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["actorHeader"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Actor-Id",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"actorHeader": {}},
	}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Volunteer Match API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Actor-Id.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := e.Repo.Ping(ctx); err != nil {
			return nil, newAPIError(http.StatusServiceUnavailable, engine.KindUpstream, "store unavailable", nil)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type jobRequestPath struct {
	ID string `path:"id"`
}

func registerJobRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job-request",
		Method:        http.MethodPost,
		Path:          "/job-requests",
		Summary:       "Create job request",
		Description:   "Stores an Active job request and runs matching once.",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequestBody `json:"body"`
	}) (*struct {
		Body jobRequestBody `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		j, err := e.CreateJobRequest(ctx, input.Body.input(actorID))
		if err != nil {
			var details map[string]any
			if j.ID != "" {
				details = map[string]any{"job_request_id": j.ID}
			}
			return nil, handleErrorWithDetails(err, details)
		}
		return &struct {
			Body jobRequestBody `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-job-requests",
		Method:      http.MethodGet,
		Path:        "/job-requests",
		Summary:     "List job requests",
		Description: "Newest first. Filters match by equality. Every matching job request is returned unless limit is set.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status         string `query:"status" enum:"Active,In Progress,Fulfilled,Archived"`
		Location       string `query:"location"`
		VolunteerField string `query:"volunteer_field"`
		Limit          int    `query:"limit" minimum:"0" doc:"Maximum rows; 0 returns all"`
	}) (*struct {
		Body JobRequestList `json:"body"`
	}, error) {
		items, err := e.ListJobRequests(ctx, repo.JobRequestFilters{
			Status:         input.Status,
			Location:       input.Location,
			VolunteerField: input.VolunteerField,
			Limit:          input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []jobRequestBody{}
		}
		return &struct {
			Body JobRequestList `json:"body"`
		}{Body: JobRequestList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-request",
		Method:      http.MethodGet,
		Path:        "/job-requests/{id}",
		Summary:     "Get job request",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *jobRequestPath) (*struct {
		Body jobRequestBody `json:"body"`
	}, error) {
		j, err := e.GetJobRequest(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body jobRequestBody `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-job-request",
		Method:      http.MethodPatch,
		Path:        "/job-requests/{id}",
		Summary:     "Update job request",
		Description: "A status change appends to the history. Changing location, volunteer field, background or timing re-runs matching.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateJobRequestBody `json:"body"`
	}) (*struct {
		Body jobRequestBody `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.UpdateJobRequest(ctx, input.Body.patch(input.ID, actorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body jobRequestBody `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-job-request",
		Method:        http.MethodDelete,
		Path:          "/job-requests/{id}",
		Summary:       "Delete job request",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *jobRequestPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteJobRequest(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-matching",
		Method:      http.MethodPost,
		Path:        "/job-requests/{id}/match",
		Summary:     "Recompute match results",
		Errors: []int{
			http.StatusNotFound,
			http.StatusUnauthorized,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}, func(ctx context.Context, input *jobRequestPath) (*struct {
		Body MatchResultList `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.RunMatching(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MatchResultList `json:"body"`
		}{Body: MatchResultList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "inspect-match",
		Method:      http.MethodGet,
		Path:        "/job-requests/{id}/candidates/{candidate_id}/inspection",
		Summary:     "Score one candidate live",
		Description: "Recomputes the score from current records. Cached match results are not consulted.",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID          string `path:"id"`
		CandidateID string `path:"candidate_id"`
	}) (*struct {
		Body engine.Inspection `json:"body"`
	}, error) {
		ins, err := e.Inspect(ctx, input.ID, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Inspection `json:"body"`
		}{Body: ins}, nil
	})
}

func registerInvitations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "invite-candidate",
		Method:      http.MethodPost,
		Path:        "/job-requests/{id}/invitations",
		Summary:     "Invite a candidate",
		Description: "Replaces any earlier invitation for the same candidate.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string     `path:"id"`
		Body InviteBody `json:"body"`
	}) (*struct {
		Body jobRequestBody `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.Invite(ctx, input.ID, input.Body.CandidateID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body jobRequestBody `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-invitation",
		Method:      http.MethodPost,
		Path:        "/job-requests/{id}/invitations/{candidate_id}/response",
		Summary:     "Record a candidate's response",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID          string      `path:"id"`
		CandidateID string      `path:"candidate_id"`
		Body        RespondBody `json:"body"`
	}) (*struct {
		Body jobRequestBody `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.RecordResponse(ctx, input.ID, input.CandidateID, input.Body.Response, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body jobRequestBody `json:"body"`
		}{Body: j}, nil
	})
}

func registerCandidates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/candidates",
		Summary:     "List candidate profiles",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role"`
	}) (*struct {
		Body CandidateList `json:"body"`
	}, error) {
		items, err := e.ListCandidates(ctx, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []candidateBody{}
		}
		return &struct {
			Body CandidateList `json:"body"`
		}{Body: CandidateList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-candidate",
		Method:      http.MethodGet,
		Path:        "/candidates/{id}",
		Summary:     "Get candidate profile",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body candidateBody `json:"body"`
	}, error) {
		c, err := e.GetCandidate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body candidateBody `json:"body"`
		}{Body: c}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/notifications",
		Summary:     "List a user's notifications",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body NotificationList `json:"body"`
	}, error) {
		items, err := e.ListNotifications(ctx, input.UserID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []notificationBody{}
		}
		return &struct {
			Body NotificationList `json:"body"`
		}{Body: NotificationList{Items: items}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
