package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/draftwire/draftwire/blob"
	"github.com/draftwire/draftwire/chat"
	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/draft"
	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/registry"
	"github.com/draftwire/draftwire/ws"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:4000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	hub *ws.Hub
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()
	log.SetFlags(0)

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	store, err := blob.NewObjectStore(globalConfig)
	if err != nil {
		panic(err)
	}
	if store == nil {
		globals.AppLogger.Warn("no blob store configured, attachments are disabled")
	}

	reg, err := registry.NewRegistry(persister)
	if err != nil {
		panic(err)
	}
	reg.Warm()

	chatLog := chat.NewLog(persister, store)
	editor := draft.NewEditor(persister, store)

	hub = ws.NewHub(globalConfig, persister, reg, chatLog, editor)
	go hub.Run()

	setupRoutes()
	// start HTTP server
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

func setupRoutes() {
	router := mux.NewRouter()
	router.HandleFunc("/ws", websocketHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	http.Handle("/", router)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Handle incoming websockets
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}

	// When this frame returns close the Websocket
	defer conn.Close() //nolint

	doneChan := make(chan struct{})
	client := ws.NewClient(hub, conn, uuid.NewString(), doneChan)

	// wait until the client is actually registered before starting the
	// loops, so broadcasts triggered by its own first events reach it
	client.Add(1)
	hub.Register <- client
	client.Wait()
	defer func() {
		hub.Unregister <- client
	}()

	client.Add(2)
	go client.ReadLoop()
	go client.WriteLoop()

	<-doneChan
	// the read loop is gone, apply leave semantics on every room this
	// connection was a member of
	hub.HandleDisconnect(client)
	globals.AppLogger.Info("connection closed", "connId", client.ConnId)
}
