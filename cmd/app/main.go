package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdfviewer/internal/config"
    logpkg "github.com/local/pdfviewer/internal/logger"
    "github.com/local/pdfviewer/internal/metrics"
    "github.com/local/pdfviewer/internal/render"
    "github.com/local/pdfviewer/internal/source"
    "github.com/local/pdfviewer/internal/store"
    "github.com/local/pdfviewer/internal/viewer"
    web "github.com/local/pdfviewer/internal/web"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Stores: Redis when configured, in-process otherwise
    var surfaces store.SurfaceStore
    var status store.StatusStore
    if cfg.Store.RedisURL != "" {
        rs, err := store.NewRedisSurfaces(cfg.Store.RedisURL, cfg.Store.SurfaceTTL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to init redis surface store")
        }
        surfaces = rs
        st, err := store.NewRedisStatus(cfg.Store.RedisURL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to init redis status store")
        }
        status = st
    } else {
        log.Info().Msg("no REDIS_URL; using in-process stores")
        surfaces = store.NewMemorySurfaces()
        status = store.NewMemoryStatus()
    }
    defer surfaces.Close()
    defer status.Close()

    loader := source.New(source.Options{
        MinBytes: cfg.Viewer.MinBytes,
        S3: source.S3Options{
            Bucket:    cfg.S3.Bucket,
            Region:    cfg.S3.Region,
            AccessKey: cfg.S3.AccessKey,
            SecretKey: cfg.S3.SecretKey,
        },
    })

    mgr := viewer.NewManager(cfg.Viewer, viewer.Dependencies{
        Loader:   loader,
        Opener:   render.FitzOpener{JPEGQuality: cfg.Viewer.JPEGQuality},
        Surfaces: surfaces,
        Status:   status,
    })

    sweepCtx, stopSweep := context.WithCancel(context.Background())
    defer stopSweep()
    mgr.StartSweeper(sweepCtx, cfg.Viewer.SessionTTL/2)

    mux := http.NewServeMux()
    web.New(mgr).RegisterRoutes(mux)
    mux.Handle("GET /metrics", metrics.Handler())

    port := os.Getenv("PORT")
    if port == "" { port = "8080" }
    srv := &http.Server{Addr: ":"+port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(ctx)
    fmt.Println("shutdown complete")
}
