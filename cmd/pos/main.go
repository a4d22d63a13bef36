// Package main запускает HTTP-сервер POS-клиента заказов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pos-order-system/internal/cart"
	"github.com/mmeshcher/pos-order-system/internal/config"
	"github.com/mmeshcher/pos-order-system/internal/handler"
	"github.com/mmeshcher/pos-order-system/internal/identity"
	"github.com/mmeshcher/pos-order-system/internal/notify"
	"github.com/mmeshcher/pos-order-system/internal/repository"
	"github.com/mmeshcher/pos-order-system/internal/service"
	"github.com/mmeshcher/pos-order-system/internal/store"
	"github.com/mmeshcher/pos-order-system/internal/syncer"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	st, err := store.Open(cfg.StoreDSN)
	if err != nil {
		sugar.Fatalw("store initialization error", "error", err.Error())
	}
	defer st.Close()

	clientID, err := identity.NewProvider(cfg.ClientIDFile).GetOrCreate()
	if err != nil {
		sugar.Fatalw("client identity error", "error", err.Error())
	}

	repo := repository.New(st, clientID, logger)

	feed := notify.NewFeed(50)
	notifier := notify.Multi{notify.NewLogNotifier(logger), feed}

	engine := syncer.New(st, clientID, repo, notifier, logger)
	repo.SetObserver(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repo.Load(ctx); err != nil {
		sugar.Fatalw("load orders snapshot error", "error", err.Error())
	}

	svc := service.NewService(cart.New(), repo, service.AutoConfirm)

	h := handler.NewHandler(svc, feed, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск наблюдателя изменений разделяемого хранилища
	g.Go(func() error {
		return engine.Run(ctx)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pos client", "addr", cfg.RunAddress, "clientID", clientID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
