package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/unilib/middleware"
	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	Accounts      *service.AccountService
	Catalog       *service.CatalogService
	Loans         *service.LoanService
	Returns       *service.ReturnService
	Extensions    *service.ExtensionService
	Fines         *service.FineService
	Policy        *service.PolicyProvider
	Notifications *service.NotificationDispatcher
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func NewRouter(d Deps) http.Handler {
	auth := &AuthHandler{Accounts: d.Accounts, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL}
	users := &UsersHandler{Accounts: d.Accounts}
	books := &BooksHandler{Catalog: d.Catalog}
	loans := &LoansHandler{Loans: d.Loans, Returns: d.Returns, Extensions: d.Extensions}
	exts := &ExtensionsHandler{Extensions: d.Extensions}
	fines := &FinesHandler{Fines: d.Fines}
	policy := &PolicyHandler{Policy: d.Policy}
	notes := &NotificationsHandler{Notifications: d.Notifications}

	staff := middleware.RequireRole(models.RoleLibrarian, models.RoleAdmin)
	admin := middleware.RequireRole(models.RoleAdmin)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.CORSOrigins...))
	r.Use(middleware.SecureHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, service.NotFound(service.CodeNotFound, "route not found"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.JWTSecret))
			r.Get("/me", auth.Me)

			r.With(admin).Post("/users", users.Create)
			r.With(admin).Get("/users", users.List)

			r.Get("/books", books.List)
			r.Get("/books/{id}", books.Get)
			r.With(staff).Post("/books", books.Create)
			r.With(staff).Patch("/books/{id}/stock", books.AdjustStock)
			r.With(staff).Patch("/books/{id}/status", books.SetStatus)

			r.Route("/loans", func(r chi.Router) {
				r.Post("/self", loans.CreateSelf)
				r.With(staff).Post("/", loans.Create)
				r.Get("/", loans.List)

				r.With(staff).Put("/extensions/{id}/approve", exts.Approve)
				r.With(staff).Put("/extensions/{id}/reject", exts.Reject)

				r.Get("/fines", fines.List)
				r.Get("/fines/outstanding", fines.Outstanding)
				r.Get("/fines/{id}", fines.Get)
				r.Put("/fines/{id}/pay", fines.Pay)
				r.With(staff).Put("/fines/{id}/waive", fines.Waive)

				r.Get("/{id}", loans.Get)
				r.With(staff).Put("/{id}/approve", loans.Approve)
				r.With(staff).Put("/{id}/reject", loans.Reject)
				r.Put("/{id}/cancel", loans.Cancel)
				r.With(staff).Put("/{id}/return", loans.Return)
				r.Get("/{id}/returns", loans.ListReturns)
				r.Get("/{id}/extensions", loans.ListExtensions)
				r.Post("/{id}/extend", loans.Extend)
			})

			r.Get("/fine-policy", policy.Get)
			r.With(admin).Put("/fine-policy", policy.Put)

			r.Get("/notifications", notes.List)
			r.Put("/notifications/{id}/read", notes.MarkRead)
		})
	})
	return r
}
