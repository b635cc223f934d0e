package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tobeyfinance/backoffice/internal/audit"
	"github.com/tobeyfinance/backoffice/internal/config"
	"github.com/tobeyfinance/backoffice/internal/database"
	"github.com/tobeyfinance/backoffice/internal/handlers"
	"github.com/tobeyfinance/backoffice/internal/identity"
	mW "github.com/tobeyfinance/backoffice/internal/middleware"
	"github.com/tobeyfinance/backoffice/internal/services"
	"github.com/tobeyfinance/backoffice/internal/store"
)

func main() {
	config.Init()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	st := store.New(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.Initialize(ctx,
		services.AccountsCollection,
		services.TransactionsCollection,
		identity.Collection,
		audit.Collection,
	); err != nil {
		cancel()
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	cancel()

	trail := audit.NewTrail(st, redisClient)
	defer trail.Close()

	directory := identity.NewDirectory(st)

	ledgerCfg := config.LoadLedgerConfig()
	ledgerService := services.NewAccountLedgerService(st, directory, trail, services.LedgerOptions{
		DefaultCurrency:     ledgerCfg.DefaultCurrency,
		DefaultInterestRate: &ledgerCfg.DefaultInterestRate,
	})
	queryService := services.NewTransactionQueryService(st)

	accountHandler := handlers.NewAccountHandler(ledgerService)
	transactionHandler := handlers.NewTransactionHandler(queryService, ledgerService)
	customerHandler := handlers.NewCustomerHandler(directory, ledgerService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.Actor)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/customers", customerHandler.RegisterCustomer)
		r.Get("/customers/{customerId}", customerHandler.GetCustomer)
		r.Get("/customers/{customerId}/accounts", customerHandler.ListCustomerAccounts)

		r.Post("/accounts", accountHandler.CreateAccount)
		r.Get("/accounts/{accountId}", accountHandler.GetAccount)
		r.Get("/accounts/{accountId}/balance", accountHandler.GetBalance)
		r.Post("/accounts/{accountId}/deposit", accountHandler.Deposit)
		r.Post("/accounts/{accountId}/withdraw", accountHandler.Withdraw)
		r.Post("/accounts/{accountId}/close", accountHandler.CloseAccount)
		r.Post("/accounts/{accountId}/interest", accountHandler.ApplyInterest)
		r.Get("/accounts/{accountId}/statement", transactionHandler.Statement)
		r.Get("/accounts/{accountId}/summary", transactionHandler.Summary)

		r.Post("/transfers", accountHandler.Transfer)

		r.Get("/transactions", transactionHandler.ListTransactions)
		r.Get("/transactions/search", transactionHandler.SearchTransactions)
		r.Get("/transactions/statistics", transactionHandler.Statistics)
		r.Get("/transactions/{txId}", transactionHandler.GetTransaction)
		r.Post("/transactions/{txId}/process", transactionHandler.ProcessTransaction)
		r.Post("/transactions/{txId}/cancel", transactionHandler.CancelTransaction)
	})

	serverCfg := config.LoadServerConfig()
	port := serverCfg.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
