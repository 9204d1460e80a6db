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

    "github.com/local/pdfpress/internal/codec"
    cfgpkg "github.com/local/pdfpress/internal/config"
    "github.com/local/pdfpress/internal/engine"
    "github.com/local/pdfpress/internal/history"
    "github.com/local/pdfpress/internal/jobs"
    "github.com/local/pdfpress/internal/limiter"
    logpkg "github.com/local/pdfpress/internal/logger"
    "github.com/local/pdfpress/internal/metrics"
    "github.com/local/pdfpress/internal/pdfdoc"
    "github.com/local/pdfpress/internal/session"
    "github.com/local/pdfpress/internal/storage"
    "github.com/local/pdfpress/internal/thumbs"
    "github.com/local/pdfpress/internal/web"
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

    // Session + artifact stores
    sessions, err := session.NewStore(cfg.Session.RedisURL, cfg.Session.SourceTTL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init session store")
    }
    defer sessions.Close()

    artifacts, err := jobs.NewStore(cfg.Session.RedisURL, cfg.Session.JobTTL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init artifact store")
    }
    defer artifacts.Close()

    // Job history
    hist, err := history.NewStore(cfg.History.Path)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to open history db")
    }

    // Result export: S3 when a bucket is configured, local dir otherwise
    var exporter web.Exporter
    if cfg.Storage.S3Bucket != "" {
        s3exp, err := storage.NewS3Exporter(context.Background(), cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to init S3 exporter")
        }
        exporter = s3exp
    } else {
        exporter = storage.NewLocalExporter(cfg.Storage.ResultDir)
    }

    tk := pdfdoc.New()
    cdc := codec.New()
    eng := engine.New(tk, cdc)

    api := web.New(web.Dependencies{
        Engine:   eng,
        Toolkit:  tk,
        Codec:    cdc,
        Sessions: sessions,
        Jobs:     artifacts,
        History:  hist,
        Exporter: exporter,
        Thumbs:   thumbs.New(tk, cdc),
        Limiter:  limiter.New(cfg.Server.MaxConcurrent),
        MaxUploadBytes: cfg.Server.MaxUploadBytes,
    })

    mux := http.NewServeMux()
    api.RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
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
