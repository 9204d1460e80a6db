// Package logger wires the process-wide zerolog logger for pdfpress:
// a rotated log file, console output (pretty in dev) and optional
// batched forwarding to Axiom. Every line carries the service field so
// downstream queries can filter pdfpress events without guessing.
package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
    serviceName    = "pdfpress"
    defaultDataset = "dev_pdfpress"

    forwardBuffer = 1000
    forwardBatch  = 200
    defaultFlush  = 10 * time.Second
    ingestTimeout = 15 * time.Second
)

// Options defines logger initialization parameters.
type Options struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

var fw *axiomForwarder

// Init configures the global zerolog logger from opts. Axiom setup
// failures disable forwarding but never fail startup.
func Init(opts Options) error {
    writers, err := buildWriters(opts)
    if err != nil {
        return err
    }

    zerolog.TimeFieldFormat = time.RFC3339
    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil {
        lvl = zerolog.InfoLevel
    }

    log.Logger = zerolog.New(io.MultiWriter(writers...)).
        Level(lvl).
        With().
        Timestamp().
        Str("service", serviceName).
        Logger()
    return nil
}

func buildWriters(opts Options) ([]io.Writer, error) {
    var writers []io.Writer

    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return nil, fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, os.Stdout)
    }

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        f, err := newForwarder(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            fw = f
            writers = append(writers, &axiomWriter{fw: f})
        }
    }
    return writers, nil
}

// Close flushes any buffered external loggers.
func Close() {
    if fw != nil {
        fw.Close()
    }
}

// axiomWriter feeds zerolog JSON lines into the forwarder. Trace and
// debug lines stay local; they are too chatty for the remote dataset.
type axiomWriter struct{ fw *axiomForwarder }

func (w *axiomWriter) Write(p []byte) (int, error) {
    var ev map[string]interface{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), "level": "info", "service": serviceName}
    }
    if lvl, ok := ev["level"].(string); ok && (lvl == "debug" || lvl == "trace") {
        return len(p), nil
    }
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    w.fw.enqueue(axiom.Event(ev))
    return len(p), nil
}

// axiomForwarder batches events and ships them on a timer or when a
// batch fills, whichever comes first.
type axiomForwarder struct {
    client  *axiom.Client
    dataset string
    ch      chan axiom.Event
    wg      sync.WaitGroup
    cancel  context.CancelFunc
    ctx     context.Context
}

func newForwarder(token, orgID, dataset string, flushEvery time.Duration) (*axiomForwarder, error) {
    if dataset == "" {
        dataset = defaultDataset
    }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" {
        opts = append(opts, axiom.SetOrganizationID(orgID))
    }
    c, err := axiom.NewClient(opts...)
    if err != nil {
        return nil, err
    }
    if flushEvery <= 0 {
        flushEvery = defaultFlush
    }
    ctx, cancel := context.WithCancel(context.Background())
    f := &axiomForwarder{
        client:  c,
        dataset: dataset,
        ch:      make(chan axiom.Event, forwardBuffer),
        ctx:     ctx,
        cancel:  cancel,
    }
    f.wg.Add(1)
    go f.run(flushEvery)
    return f, nil
}

// enqueue never blocks the logging path; events drop when the buffer
// is full.
func (f *axiomForwarder) enqueue(ev axiom.Event) {
    select {
    case f.ch <- ev:
    default:
    }
}

func (f *axiomForwarder) run(flushEvery time.Duration) {
    defer f.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, forwardBatch)
    flush := func() {
        if len(batch) == 0 {
            return
        }
        ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
        _, _ = f.client.IngestEvents(ctx, f.dataset, batch)
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-f.ctx.Done():
            flush()
            return
        case <-ticker.C:
            flush()
        case ev := <-f.ch:
            batch = append(batch, ev)
            if len(batch) >= forwardBatch {
                flush()
            }
        }
    }
}

func (f *axiomForwarder) Close() {
    f.cancel()
    f.wg.Wait()
}
