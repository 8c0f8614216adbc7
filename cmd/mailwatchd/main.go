package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"mailwatch/internal/api"
	"mailwatch/internal/config"
	"mailwatch/internal/cryptutil"
	"mailwatch/internal/dispatch"
	"mailwatch/internal/kv"
	"mailwatch/internal/retryqueue"
	"mailwatch/internal/store"
	"mailwatch/internal/supervisor"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.Printf("starting: api=%s db=%s kv=%s:%d", cfg.APIAddr, cfg.DBPath, cfg.KVHost, cfg.KVPort)

	keyBytes, err := hex.DecodeString(cfg.EncryptionKeyHex)
	if err != nil {
		log.Fatalf("encryption key is not valid hex: %v", err)
	}
	cipher, err := cryptutil.New(keyBytes)
	if err != nil {
		log.Fatalf("encryption key: %v", err)
	}

	kvc := kv.New(kvAddr(cfg), cfg.KVDB)
	defer kvc.Close()

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	st, err := store.New(cfg.DBPath, kvc, cacheTTL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	disp, err := dispatch.New(cfg.BotToken, kvc)
	if err != nil {
		log.Fatalf("dispatcher: %v", err)
	}

	sup := supervisor.New(st, kvc, cipher, disp)
	if err := sup.StartupSweep(ctx); err != nil {
		log.Printf("startup sweep: %v", err)
	}

	rq := retryqueue.New(kvc, disp)
	go rq.Run(ctx)

	apiServer := api.New(cfg.APIAddr, st, sup)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil {
			log.Printf("api server exited: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	sup.Shutdown()
}

func kvAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.KVHost, cfg.KVPort)
}
