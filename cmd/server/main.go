package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/pairwire/internal/server"
)

func main() {
	fmt.Println("Starting PairWire signaling server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	server.StartSupervisor()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := server.GetSupervisor().Shutdown(10 * time.Second); err != nil {
		log.Printf("Supervisor shutdown did not complete cleanly: %v", err)
	}
}
