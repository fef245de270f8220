package api

import (
	"context"
	"net/http"
	"time"

	"github.com/soaringjerry/Vitals/internal/middleware"
	"github.com/soaringjerry/Vitals/internal/services"
)

type Options struct {
	DemoMode     bool
	SeedPassword string
	SessionTTL   time.Duration
	Events       services.Publisher
}

// Router wires the services onto a store and exposes them over HTTP.
type Router struct {
	store    Store
	identity *services.IdentityService
	sessions *services.SessionService
	exercise *services.PlanService[*services.ExercisePlan]
	diet     *services.PlanService[*services.DietPlan]
	progress *services.ProgressService
}

func signToken(sessionID, identityID string, role services.Role, ttl time.Duration) (string, error) {
	return middleware.SignToken(sessionID, identityID, string(role), ttl)
}

func verifyToken(token string) (string, error) {
	c, err := middleware.ParseToken(token)
	if err != nil {
		return "", err
	}
	return c.SessionID(), nil
}

func NewRouter(store Store, opts Options) *Router {
	identities := newIdentityStoreAdapter(store)
	return &Router{
		store: store,
		identity: services.NewIdentityService(identities, services.IdentityConfig{
			DemoMode:     opts.DemoMode,
			SeedPassword: opts.SeedPassword,
			Events:       opts.Events,
		}),
		sessions: services.NewSessionService(identities, signToken, verifyToken, opts.SessionTTL),
		exercise: services.NewExercisePlanService(newExercisePlanStoreAdapter(store), identities, opts.Events),
		diet:     services.NewDietPlanService(newDietPlanStoreAdapter(store), identities, opts.Events),
		progress: services.NewProgressService(newProgressStoreAdapter(store), opts.Events),
	}
}

func (rt *Router) Identity() *services.IdentityService { return rt.identity }

// EnsureSeedData seeds the default identities into an empty store.
func (rt *Router) EnsureSeedData(ctx context.Context) (bool, error) {
	return rt.identity.EnsureSeedData(ctx)
}

func (rt *Router) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }

	mux.HandleFunc("GET /health", rt.handleHealth)

	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", rt.handleLogout)
	mux.Handle("GET /api/auth/me", authed(rt.handleMe))

	mux.Handle("GET /api/users", authed(rt.handleListUsers))
	mux.Handle("GET /api/users/overview", authed(rt.handleOverview))
	mux.Handle("DELETE /api/users/{id}", authed(rt.handleDeleteUser))
	mux.Handle("GET /api/patients", authed(rt.handleListPatients))

	mux.Handle("GET /api/patients/{id}/exercise-plans", authed(listPlans(rt, rt.exercise)))
	mux.Handle("POST /api/patients/{id}/exercise-plans", authed(createPlan(rt, rt.exercise)))
	mux.Handle("GET /api/patients/{id}/exercise-plans/current", authed(currentPlan(rt, rt.exercise)))
	mux.Handle("PUT /api/exercise-plans/{id}", authed(updatePlan(rt, rt.exercise)))

	mux.Handle("GET /api/patients/{id}/diet-plans", authed(listPlans(rt, rt.diet)))
	mux.Handle("POST /api/patients/{id}/diet-plans", authed(createPlan(rt, rt.diet)))
	mux.Handle("GET /api/patients/{id}/diet-plans/current", authed(currentPlan(rt, rt.diet)))
	mux.Handle("PUT /api/diet-plans/{id}", authed(updatePlan(rt, rt.diet)))

	mux.Handle("GET /api/patients/{id}/progress", authed(rt.handleListProgress))
	mux.Handle("POST /api/patients/{id}/progress", authed(rt.handleSubmitProgress))
	mux.Handle("GET /api/patients/{id}/progress.csv", authed(rt.handleExportProgress))
}

// Handler returns the routes wrapped in the standard middleware chain.
func (rt *Router) Handler(corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	return middleware.Chain(mux,
		middleware.CORS(corsOrigin),
		middleware.SecureHeaders,
		middleware.NoStore,
		middleware.WithAuth,
	)
}

// session resolves the request's bearer token against the session store.
func (rt *Router) session(r *http.Request) (*services.Session, error) {
	tok, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		return nil, services.NewUnauthorizedError("not signed in")
	}
	return rt.sessions.Resolve(r.Context(), tok)
}

func (rt *Router) actor(r *http.Request) (services.Actor, error) {
	sess, err := rt.session(r)
	if err != nil {
		return services.Actor{}, err
	}
	return sess.Actor()
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": "Vitals API"})
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := rt.identity.Register(r.Context(), req.Email, req.Password, req.Role, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(id))
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := rt.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	token, sess, err := rt.sessions.Begin(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": sess.ExpiresAt(),
		"user":       viewOf(id),
	})
}

func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := middleware.TokenFromContext(r.Context()); ok {
		if err := rt.sessions.End(r.Context(), tok); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, ok := sess.CurrentIdentity()
	if !ok {
		writeError(w, services.NewUnauthorizedError("not signed in"))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id))
}

func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ids, err := rt.identity.ListVisible(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": viewsOf(ids)})
}

func (rt *Router) handleOverview(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ov, err := rt.identity.Overview(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (rt *Router) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.identity.Remove(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleListPatients(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ids, err := rt.identity.ListPatients(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": viewsOf(ids)})
}

func listPlans[P services.Plan](rt *Router, svc *services.PlanService[P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := rt.actor(r)
		if err != nil {
			writeError(w, err)
			return
		}
		plans, err := svc.ListForPatient(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if plans == nil {
			plans = []P{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": svc.Kind(), "plans": plans})
	}
}

func createPlan[P services.Plan](rt *Router, svc *services.PlanService[P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := rt.actor(r)
		if err != nil {
			writeError(w, err)
			return
		}
		body := svc.NewBody()
		if err := decodeJSON(r, body); err != nil {
			writeError(w, err)
			return
		}
		if _, err := svc.Create(r.Context(), actor, r.PathValue("id"), body); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, body)
	}
}

func currentPlan[P services.Plan](rt *Router, svc *services.PlanService[P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := rt.actor(r)
		if err != nil {
			writeError(w, err)
			return
		}
		cur, err := svc.Current(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if cur == nil {
			writeError(w, services.NewNotFoundError("no "+string(svc.Kind())+" plan"))
			return
		}
		writeJSON(w, http.StatusOK, cur)
	}
}

func updatePlan[P services.Plan](rt *Router, svc *services.PlanService[P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := rt.actor(r)
		if err != nil {
			writeError(w, err)
			return
		}
		body := svc.NewBody()
		if err := decodeJSON(r, body); err != nil {
			writeError(w, err)
			return
		}
		if err := svc.Update(r.Context(), actor, r.PathValue("id"), body); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (rt *Router) handleListProgress(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	updates, err := rt.progress.ListForPatient(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if updates == nil {
		updates = []*services.ProgressUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
}

func (rt *Router) handleSubmitProgress(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var u services.ProgressUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, err)
		return
	}
	if _, err := rt.progress.Submit(r.Context(), actor, r.PathValue("id"), &u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &u)
}

func (rt *Router) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	actor, err := rt.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	b, err := rt.progress.ExportCSV(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=progress-"+id+".csv")
	_, _ = w.Write(b)
}
