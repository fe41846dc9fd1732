package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib"
	"github.com/fiffu/linewatch/lib/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	srv := &http.Server{Addr: cfg.ServerAddr(), Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Sugar().Infow("HTTP server listening", "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("HTTP server stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Post("/register", ctrl.register)
	r.Post("/unregister", ctrl.unregister)
	r.Get("/subscriptions/{token}", ctrl.subscriptions)
	r.Get("/disruptions", ctrl.listDisruptions)
	r.Get("/disruptions/{token}", ctrl.disruptionsForToken)
	r.Get("/lines", ctrl.listLines)

	r.Route("/admin", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("linewatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Post("/cycle", ctrl.triggerCycle)
		r.Post("/lines/import", ctrl.importLines)
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, "Error: "+err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "error", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

type subscriptionRequest struct {
	Token string `json:"token"`
	Line  string `json:"line"`
}

// readSubscription accepts a JSON body or form fields.
func readSubscription(r *http.Request) (subscriptionRequest, error) {
	var req subscriptionRequest
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("malformed body: %w", err)
		}
		return req, nil
	}
	req.Token = r.FormValue("token")
	req.Line = r.FormValue("line")
	return req, nil
}

func (ctrl *controller) register(w http.ResponseWriter, r *http.Request) {
	req, err := readSubscription(r)
	if err != nil {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	}

	err = ctrl.svc.Register(r.Context(), req.Token, req.Line)
	switch {
	case errors.Is(err, lib.ErrMissingFields):
		ctrl.reject(w, http.StatusBadRequest, err)
	case errors.Is(err, lib.ErrAlreadyRegistered):
		ctrl.reject(w, http.StatusConflict, err)
	case err != nil:
		ctrl.reject(w, http.StatusInternalServerError, err)
	default:
		ctrl.resolve(w, http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "Registered on line " + req.Line,
		})
	}
}

func (ctrl *controller) unregister(w http.ResponseWriter, r *http.Request) {
	req, err := readSubscription(r)
	if err != nil {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	}
	if req.Token == "" || req.Line == "" {
		ctrl.reject(w, http.StatusBadRequest, lib.ErrMissingFields)
		return
	}

	if _, err := ctrl.svc.Unregister(r.Context(), req.Token, req.Line); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (ctrl *controller) subscriptions(w http.ResponseWriter, r *http.Request) {
	lines, err := ctrl.svc.SubscribedLines(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, lines)
}

func (ctrl *controller) listDisruptions(w http.ResponseWriter, r *http.Request) {
	found, err := ctrl.svc.ListDisruptions(r.Context())
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[lib.DisruptionDetail, DisruptionView](found))
}

func (ctrl *controller) disruptionsForToken(w http.ResponseWriter, r *http.Request) {
	found, err := ctrl.svc.DisruptionsForToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[lib.DisruptionDetail, DisruptionView](found))
}

func (ctrl *controller) listLines(w http.ResponseWriter, r *http.Request) {
	lines, err := ctrl.svc.ListLines(r.Context())
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Line, LineView](lines))
}

func (ctrl *controller) triggerCycle(w http.ResponseWriter, r *http.Request) {
	ctrl.svc.TriggerCycle()
	ctrl.resolve(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (ctrl *controller) importLines(w http.ResponseWriter, r *http.Request) {
	n, err := ctrl.svc.ImportLines(r.Context())
	if err != nil {
		ctrl.reject(w, http.StatusBadGateway, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]int{"imported": n})
}
