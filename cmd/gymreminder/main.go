package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gym_reminder_service/internal/app"
	"gym_reminder_service/internal/domain/messaging"
	"gym_reminder_service/internal/domain/notification"
	"gym_reminder_service/internal/infra/config"
	idb "gym_reminder_service/internal/infra/database"
	"gym_reminder_service/internal/infra/httpapi"
	"gym_reminder_service/internal/infra/logger"
	"gym_reminder_service/internal/infra/metrics"
	"gym_reminder_service/internal/infra/scheduler"
	"gym_reminder_service/internal/infra/telegram"
	"gym_reminder_service/internal/infra/tracing"
	"gym_reminder_service/internal/infra/whatsapp"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var Version = "dev"

const serviceName = "gym-reminder"

func main() {
	rootCmd := &cobra.Command{
		Use:           "gymreminder",
		Short:         "Membership expiry reminders for gym branches",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and the logger. Missing credentials stop the process here.
func setup() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	logger.Log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Provider: %s", cfg.LogLevel, cfg.Environment, cfg.MessageProvider)
	return cfg, nil
}

// initTracing installs the exporter when configured. The returned func never fails the caller.
func initTracing(ctx context.Context, cfg *config.AppConfig) func() {
	log := logger.Component("tracing")
	shutdown, err := tracing.Init(ctx, serviceName, Version, cfg.OTLPEndpoint, log)
	if err != nil {
		log.WithError(err).Warn("Tracing disabled")
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}
}

// openDB keeps room in the pool for concurrent sends next to the HTTP and bot surfaces.
func openDB(ctx context.Context, cfg *config.AppConfig) (*sqlx.DB, error) {
	opts := idb.DefaultPoolOptions()
	opts.MaxOpenConns = max(cfg.DBMaxOpenConns, cfg.Reminder.SendConcurrency+2)
	opts.MaxIdleConns = min(opts.MaxIdleConns, opts.MaxOpenConns)
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return db, nil
}

func newSender(cfg *config.AppConfig) messaging.Sender {
	if cfg.MessageProvider == config.ProviderConsole {
		return whatsapp.NewConsoleSender(logger.Component("console_sender"))
	}
	return whatsapp.NewPeriskopeClient(cfg.PeriskopeBaseURL, cfg.PeriskopeAPIKey, cfg.PeriskopePhone, cfg.PeriskopeTimeout)
}

func newReminderService(cfg *config.AppConfig, db *sqlx.DB) *app.ReminderService {
	opts := app.ReminderOptions{
		SummaryKind:       notification.SummaryKindDailyPeriskope,
		LookaheadDays:     cfg.Reminder.LookaheadDays,
		ExpiredWindowDays: cfg.Reminder.ExpiredWindowDays,
		NotifyExpired:     cfg.Reminder.NotifyExpired,
		AuditPolicySkips:  cfg.Reminder.AuditPolicySkips,
		MaxCohort:         cfg.Reminder.MaxCohort,
		SendConcurrency:   cfg.Reminder.SendConcurrency,
		SummaryDisplayMax: cfg.Reminder.SummaryDisplayMax,
		CountryCode:       cfg.PhoneCountryCode,
		ChatSuffix:        cfg.PeriskopeChatSuffix,
		AdminPhone:        cfg.AdminPhone,
		Location:          cfg.Timezone,
	}
	return app.NewReminderService(
		idb.NewPostgresMembershipRepository(db),
		idb.NewPostgresBranchRepository(db),
		idb.NewPostgresNotificationRepository(db),
		newSender(cfg),
		opts,
		logger.Component("reminder_service"),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP trigger, the daily scheduler and the optional Telegram admin bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			mainLogger := logger.Component("main")
			defer initTracing(cmd.Context(), cfg)()

			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			mainLogger.Info("Database connection established successfully.")

			metrics.Init()
			reminderService := newReminderService(cfg, db)

			var paymentHandler *httpapi.PaymentHandler
			if cfg.RazorpayKeySecret != "" {
				paymentService := app.NewPaymentService(
					idb.NewPostgresPaymentRepository(db),
					idb.NewPostgresMembershipRepository(db),
					cfg.RazorpayKeySecret,
					cfg.Timezone,
					logger.Component("payment_service"),
				)
				paymentHandler = httpapi.NewPaymentHandler(paymentService, logger.Component("payment_handler"))
				mainLogger.Info("Payment verification enabled.")
			}

			reminderScheduler := scheduler.NewReminderScheduler(reminderService, logger.Component("scheduler"), cfg.Timezone, cfg.CronSpecDailyReminder)
			if err := reminderScheduler.Start(); err != nil {
				return fmt.Errorf("could not add daily reminder cron job: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.TelegramToken != "" {
				bot, err := telegram.NewBot(cfg.TelegramToken, logger.Component("telegram"))
				if err != nil {
					return fmt.Errorf("could not create Telegram bot: %w", err)
				}
				notifRepo := idb.NewPostgresNotificationRepository(db)
				adminService := app.NewAdminService(reminderService, notifRepo, notification.SummaryKindDailyPeriskope, cfg.AdminTelegramID)
				telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, logger.Component("telegram"))
				telegram.RegisterAdminHandlers(ctx, bot, adminService, logger.Component("telegram"))
				go bot.Start()
				defer bot.Stop()
				mainLogger.Info("Telegram admin bot started.")
			}

			router := httpapi.NewRouter(
				httpapi.NewReminderHandler(reminderService, logger.Component("reminder_handler")),
				paymentHandler,
				httpapi.NewHealthHandler(db),
			)
			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				mainLogger.WithField("addr", server.Addr).Info("HTTP server listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				mainLogger.WithError(err).Error("HTTP server failed")
			}

			mainLogger.Info("Shutting down application...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				mainLogger.WithError(err).Warn("HTTP server shutdown error")
			}
			reminderScheduler.Stop()
			mainLogger.Info("Application shut down gracefully.")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var manual bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run today's expiry reminders once and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer initTracing(cmd.Context(), cfg)()

			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := newReminderService(cfg, db).Run(ctx, app.RunOptions{Manual: manual, Trigger: "cli"})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().BoolVar(&manual, "manual", false, "Mark the run as manually triggered")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if err := idb.MigrateUp(cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Log.Info("Migrations applied.")
			return nil
		},
	}
}
