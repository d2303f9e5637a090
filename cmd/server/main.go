package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"coursemarket/internal/cartstore"
	"coursemarket/internal/config"
	"coursemarket/internal/database"
	"coursemarket/internal/handlers"
	"coursemarket/internal/middleware"
	"coursemarket/internal/repositories"
	"coursemarket/internal/services"
	"coursemarket/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := newLogger(cfg.Server.Env)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database ready")

	// Redis backs the cart store; without it carts fall back to process
	// memory, which only suits local development.
	var store cartstore.Store
	if client, err := cartstore.NewRedisClient(cfg.Redis.URL); err != nil {
		logger.Warn("redis unavailable, using in-memory cart store", zap.Error(err))
		store = cartstore.NewMemoryStore()
	} else {
		defer client.Close()
		store = cartstore.NewRedisStore(client)
		logger.Info("redis cart store ready")
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.MaxAge(cfg.Session.MaxAge)

	catalogRepo := repositories.NewCatalogRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)

	cartService := services.NewCartService(store, catalogRepo, orderRepo,
		cfg.Cart.TTL, cfg.Cart.TaxRate, logger)

	var gateway services.PaymentGateway
	var verifier services.WebhookVerifier
	if cfg.Stripe.SecretKey != "" {
		stripeGateway := services.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, logger)
		gateway = stripeGateway
		verifier = stripeGateway
	} else {
		logger.Warn("stripe not configured, using mock payment gateway")
		gateway = services.NewMockPaymentGateway(logger)
	}

	checkoutService := services.NewCheckoutService(cartService, orderRepo, gateway,
		cfg.Cart.Currency, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, logger)

	var emailService services.EmailSender
	if cfg.Resend.APIKey != "" {
		emailService = services.NewResendEmailService(services.ResendConfig{
			APIKey:    cfg.Resend.APIKey,
			FromEmail: cfg.Resend.FromEmail,
			FromName:  cfg.Resend.FromName,
		})
	} else {
		logger.Warn("resend not configured, order confirmation emails disabled")
	}

	var whatsappService services.WhatsAppNotifier
	if cfg.WhatsApp.APIToken != "" {
		whatsappService = services.NewWhatsAppService(services.WhatsAppConfig{
			APIURL:    cfg.WhatsApp.APIURL,
			APIToken:  cfg.WhatsApp.APIToken,
			FromPhone: cfg.WhatsApp.FromPhone,
		})
	}

	finalizer := services.NewOrderFinalizer(orderRepo, cartService, emailService, whatsappService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := worker.NewReconciliationWorker(orderRepo,
		cfg.Worker.ReconcileInterval, cfg.Worker.StaleOrderMaxAge, logger)
	go reconciler.Start(ctx)

	router := newRouter(cfg, logger, sessionStore, cartService, checkoutService, finalizer, verifier, orderRepo, db)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	finalizer.Wait()
}

func newRouter(
	cfg *config.Config,
	logger *zap.Logger,
	sessionStore sessions.Store,
	cartService *services.CartService,
	checkoutService *services.CheckoutService,
	finalizer *services.OrderFinalizer,
	verifier services.WebhookVerifier,
	orderRepo *repositories.OrderRepository,
	db *database.DB,
) *chi.Mux {
	sessionMW := middleware.NewSessionMiddleware(sessionStore, cfg.Session.MaxAge)

	cartHandler := handlers.NewCartHandler(cartService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)
	orderHandler := handlers.NewOrderHandler(orderRepo, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Webhooks authenticate by signature, not by session.
	if verifier != nil {
		webhookHandler := handlers.NewWebhookHandler(verifier, finalizer, logger)
		r.Post("/api/webhooks/stripe", webhookHandler.HandleStripeWebhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(sessionMW.EnsureCartSession)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Get("/count", cartHandler.GetItemCount)
			r.Post("/validate", cartHandler.ValidateCart)
			r.Post("/merge", cartHandler.MergeCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{itemID}", cartHandler.UpdateItem)
			r.Delete("/items/{itemID}", cartHandler.RemoveItem)
		})

		r.Post("/api/checkout", checkoutHandler.Checkout)

		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderID}", orderHandler.GetOrder)
		})
	})

	return r
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
