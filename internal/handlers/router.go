package handlers

import (
	"context"
	"net/http"

	"fairchain/internal/config"
	"fairchain/internal/db"
	"fairchain/internal/middleware"
	"fairchain/internal/storage"
	"fairchain/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner      db.TxRunner
	cfg           config.Config
	users         UserStore
	notifications NotificationStore
	tasks         TaskStore
	codes         CodeStore
	settings      SettingsStore
	kyc           KycStore
	audit         AuditStore
	service       SettlementService
	uploader      storage.Uploader
	hub           *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, notifications NotificationStore, tasks TaskStore, codes CodeStore, settings SettingsStore, kyc KycStore, audit AuditStore, service SettlementService, uploader storage.Uploader, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:      txRunner,
		cfg:           cfg,
		users:         users,
		notifications: notifications,
		tasks:         tasks,
		codes:         codes,
		settings:      settings,
		kyc:           kyc,
		audit:         audit,
		service:       service,
		uploader:      uploader,
		hub:           hub,
	}
}

// maintenanceGate adapts the settings and user stores to the maintenance
// middleware so admins keep access while the flag is on.
type maintenanceGate struct {
	settings SettingsStore
	users    UserStore
}

func (g maintenanceGate) MaintenanceEnabled(ctx context.Context) (bool, error) {
	return g.settings.MaintenanceEnabled(ctx)
}

func (g maintenanceGate) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return g.users.IsAdmin(ctx, userID)
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/verify-email", h.VerifyEmail)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	gate := maintenanceGate{settings: h.settings, users: h.users}
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.Maintenance(gate))
		r.Post("/rewards/checkin", h.CheckIn)
		r.Get("/rewards/checkin/status", h.CheckInStatus)
		r.Post("/rewards/ad-bonus", h.ClaimAdBonus)
		r.Post("/rewards/redeem", h.RedeemCode)
		r.Post("/mining/start", h.StartMining)
		r.Post("/mining/claim", h.ClaimMining)
		r.Get("/mining/status", h.MiningStatus)
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks/{id}/complete", h.CompleteTask)
		r.Post("/transfers", h.Transfer)
		r.Get("/notifications", h.ListNotifications)
		r.Post("/notifications/read", h.MarkNotificationsRead)
		r.Post("/kyc", h.SubmitKyc)
		r.Get("/kyc/status", h.KycStatus)
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.users))
		r.Get("/users", h.AdminListUsers)
		r.Get("/stats", h.AdminStats)
		r.Post("/credit", h.AdminCredit)
		r.Post("/withdraw-fees", h.WithdrawFees)
		r.Get("/kyc", h.AdminListKyc)
		r.Post("/kyc/{id}/approve", h.ApproveKyc)
		r.Post("/kyc/{id}/reject", h.RejectKyc)
		r.Post("/tasks", h.AdminCreateTask)
		r.Put("/tasks/{id}", h.AdminUpdateTask)
		r.Delete("/tasks/{id}", h.AdminDeleteTask)
		r.Get("/codes", h.AdminListCodes)
		r.Post("/codes", h.AdminUpsertCode)
		r.Delete("/codes/{code}", h.AdminDeleteCode)
		r.Get("/settings", h.AdminGetSettings)
		r.Put("/settings", h.AdminUpdateSettings)
		r.Post("/maintenance", h.AdminSetMaintenance)
		r.Post("/roles", h.AdminSetRole)
		r.Get("/audit", h.ListAuditLogs)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
