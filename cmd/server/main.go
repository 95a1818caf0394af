package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"playsdb/internal/app"
	"playsdb/internal/config"
	"playsdb/internal/server"
	"playsdb/internal/token"
	"playsdb/internal/util"
	"playsdb/pkg/mail"
	"playsdb/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	editTTL, err := config.ParseDuration("editTTL", cfg.EditTTL)
	if err != nil {
		log.Fatalf("failed to parse edit TTL: %v", err)
	}
	contactCooldown, err := config.ParseDuration("contactCooldown", cfg.ContactCooldown)
	if err != nil {
		log.Fatalf("failed to parse contact cooldown: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	tokens, err := token.NewManager(cfg.JWTSecret, token.Options{
		Issuer:     cfg.JWTIssuer,
		SessionTTL: sessionTTL,
		EditTTL:    editTTL,
	})
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	smtpAddr := ""
	if cfg.Mail.SMTPHost != "" {
		smtpAddr = fmt.Sprintf("%s:%d", cfg.Mail.SMTPHost, cfg.Mail.SMTPPort)
	}
	sender, err := mail.NewSender(mail.Config{
		Provider:     cfg.Mail.Provider,
		FromEmail:    cfg.Mail.FromEmail,
		FromName:     cfg.Mail.FromName,
		APIEndpoint:  cfg.Mail.APIEndpoint,
		APIKey:       cfg.Mail.APIKey,
		SMTPAddr:     smtpAddr,
		SMTPUsername: cfg.Mail.SMTPUser,
		SMTPPassword: cfg.Mail.SMTPPass,
	})
	if err != nil {
		log.Fatalf("failed to init mail sender: %v", err)
	}
	dispatcher := mail.NewDispatcher(sender, 256)

	appCore, err := app.New(app.Config{
		Store:           st,
		Tokens:          tokens,
		Mailer:          dispatcher,
		ContactCooldown: contactCooldown,
		ClientURL:       cfg.ClientURL,
		SupportEmail:    cfg.SupportEmail,
		SiteName:        cfg.SiteName,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                       appCore,
		RedisAddr:                 cfg.RedisAddr,
		RedisPassword:             cfg.RedisPassword,
		AuthRateLimitPerMinute:    cfg.AuthRateLimitPerMinute,
		ContactRateLimitPerMinute: cfg.ContactRateLimitPerMinute,
		ClientOrigin:              cfg.ClientURL,
		SecureCookies:             cfg.SecureCookies,
		TrustedProxies:            trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatcher.Run(ctx)
	})
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "err", err)
	}
}
