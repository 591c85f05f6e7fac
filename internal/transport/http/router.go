package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	apppublic "crimson-casino/internal/app/public"
	"crimson-casino/internal/betting"
	"crimson-casino/internal/config"
	"crimson-casino/internal/hub"
	"crimson-casino/internal/ledger"
	"crimson-casino/internal/store"
)

func NewRouter(st store.Store, cfg config.ServerConfig, tables []config.TableConfig, betSvc *betting.Service, led *ledger.Ledger, h *hub.Hub) *chi.Mux {
	publicHandlers := NewPublicHandlers(apppublic.NewService(st, tables))
	bettingHandlers := NewBettingHandlers(betSvc)
	adminHandlers := NewAdminHandlers(st, led)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Get("/ws", h.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Get("/tables", publicHandlers.Tables())
		r.Get("/tables/{table_id}/round", publicHandlers.Round())
		r.Get("/tables/{table_id}/rounds", publicHandlers.Rounds())
		r.Get("/rounds/{round_id}/proof", publicHandlers.Proof())
		r.Get("/public/leaderboard", publicHandlers.Leaderboard())
		r.Get("/accounts/{account_id}/balance", publicHandlers.Balance())
		r.Get("/accounts/{account_id}/ledger", publicHandlers.Ledger())

		r.Post("/tables/{table_id}/bets", bettingHandlers.PlaceBet())
		r.Post("/bets/{bet_id}/cashout", bettingHandlers.CashOut())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/topup", adminHandlers.Topup())
			r.Get("/ledger", adminHandlers.Ledger())
		})
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
