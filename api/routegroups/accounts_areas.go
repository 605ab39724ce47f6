package routegroups

import (
	"github.com/go-chi/chi/v5"

	"oficri-sdt/api/handlers"
	"oficri-sdt/core/rbac"
)

func RegisterAccounts(apiRouter chi.Router, g Guards, accounts *handlers.AccountsHandler) {
	apiRouter.Route("/usuarios", func(usersRouter chi.Router) {
		usersRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermView, accounts.List))
		usersRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermCreate, accounts.Create))
		usersRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermView, accounts.Get))
		usersRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.SessionPerm(rbac.PermEdit, accounts.Update))
		// Users are never hard-deleted; DELETE blocks the account.
		usersRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermDelete, accounts.Block))
		usersRouter.MethodFunc("POST", "/{id:[0-9]+}/bloquear", g.SessionPerm(rbac.PermBlock, accounts.Block))
		usersRouter.MethodFunc("POST", "/{id:[0-9]+}/desbloquear", g.SessionPerm(rbac.PermBlock, accounts.Unblock))
	})
}

func RegisterAreas(apiRouter chi.Router, g Guards, areas *handlers.AreasHandler) {
	apiRouter.Route("/areas", func(areasRouter chi.Router) {
		areasRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermView, areas.List))
		areasRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermCreate, areas.Create))
		areasRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermView, areas.Get))
		areasRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.SessionPerm(rbac.PermEdit, areas.Update))
		areasRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermDelete, areas.Deactivate))
		areasRouter.MethodFunc("POST", "/{id:[0-9]+}/activar", g.SessionPerm(rbac.PermEdit, areas.Activate))
	})
}
