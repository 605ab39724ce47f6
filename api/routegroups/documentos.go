package routegroups

import (
	"github.com/go-chi/chi/v5"

	"oficri-sdt/api/handlers"
	"oficri-sdt/core/rbac"
)

func RegisterDocumentos(apiRouter chi.Router, g Guards, docs *handlers.DocsHandler) {
	apiRouter.Route("/documentos", func(docsRouter chi.Router) {
		docsRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermView, docs.List))
		docsRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermCreate, docs.Create))
		docsRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermView, docs.Get))
		docsRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.SessionPerm(rbac.PermEdit, docs.Update))
		docsRouter.MethodFunc("POST", "/{id:[0-9]+}/derivar", g.SessionPerm(rbac.PermDerive, docs.Derive))
		docsRouter.MethodFunc("GET", "/{id:[0-9]+}/historial", g.SessionPerm(rbac.PermView, docs.History))
		docsRouter.MethodFunc("POST", "/{id:[0-9]+}/archivar", g.SessionPerm(rbac.PermEdit, docs.Archive))
		docsRouter.MethodFunc("POST", "/{id:[0-9]+}/rechazar", g.SessionPerm(rbac.PermEdit, docs.Reject))
		docsRouter.MethodFunc("POST", "/{id:[0-9]+}/completar", g.SessionPerm(rbac.PermEdit, docs.Complete))
	})

	apiRouter.Route("/derivaciones", func(derivRouter chi.Router) {
		derivRouter.MethodFunc("POST", "/{id:[0-9]+}/recibir", g.SessionPerm(rbac.PermDerive, docs.Receive))
	})
}
