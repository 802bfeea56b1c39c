// Command storefront-sandbox serves the product REST resource from an
// in-memory store so the storefront client can run against HTTP locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/comstore/storefront_sdk_go/internal/devseed"
	productmock "github.com/comstore/storefront_sdk_go/pkg/product/mock"
)

const (
	baseURLEnv = "STOREFRONT_API_BASE_URL"
	tokenEnv   = "STOREFRONT_API_TOKEN"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not load .env")
	}

	addr := flag.String("addr", ":8787", "listen address")
	seed := flag.String("seed", os.Getenv("STOREFRONT_MOCK_PRODUCT_SEED"), "path to JSON product seed")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	token := flag.String("token", os.Getenv(tokenEnv), "bearer token required on every request (empty disables the check)")
	flag.Parse()

	logger := log.WithField("component", "storefront-sandbox")

	store := productmock.New()
	if *seed != "" {
		products, err := devseed.LoadProductSeed(*seed)
		if err != nil {
			logger.WithError(err).Fatal("load product seed")
		}
		if err := store.Seed(products); err != nil {
			logger.WithError(err).Fatal("apply product seed")
		}
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		logger.WithError(err).Fatal("parse fail flag")
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(store, serverConfig{
		latency: *latency,
		fail:    failCfg,
		token:   *token,
	}, logger)

	server := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithField("addr", *addr).Info("storefront-sandbox listening")
	fmt.Println()
	fmt.Println("export STOREFRONT_RUNTIME_MODE=http")
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Printf("export %s=http://%s\n", baseURLEnv, host)
	if *token != "" {
		fmt.Printf("export %s=%s\n", tokenEnv, *token)
	}
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("server failed")
	}
}
