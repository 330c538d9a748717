// Command backendstub serves an in-memory diesel backend for local
// development and demos. Every seeded account uses backendstub.SeedPassword.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backendstub"
	"diesel-manager-web/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to read .env")
	}
	logger := logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	port := 3000
	if v := os.Getenv("STUB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			logger.Fatalf("invalid STUB_PORT %q: %v", v, err)
		}
		port = p
	}

	stub, err := backendstub.New(backendstub.Options{Secret: os.Getenv("STUB_SECRET")})
	if err != nil {
		logger.Fatalf("failed to seed stub backend: %v", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           stub.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("stub backend listening on http://localhost:%d%s", port, backendstub.BasePath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("stub backend stopped: %v", err)
	}
}
