// Command trace-agent is a demonstration harness for the tensor-access
// tracer: it loads configuration, drives a simulated op dispatcher against
// pkg/tracer so the binary trace log and buffer-lifecycle stream have
// something to show, and serves /metrics, /healthz, and /registry.csv over
// HTTP while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tensortrace/internal/config"
	"tensortrace/internal/record"
	"tensortrace/pkg/tensor"
	"tensortrace/pkg/tracer"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		configFile = os.Getenv("TENSORTRACE_CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := tracer.Init(tracer.Options{
		LogPath:            cfg.Trace.LogPath,
		LogCapacityBytes:   cfg.Trace.LogCapacityBytes,
		BufferEventsPath:   cfg.Trace.BufferEventsPath,
		TensorCapacity:     cfg.Registry.TensorCapacity,
		DiskOffsetCapacity: cfg.Registry.DiskOffsetCapacity,
		Logger:             logger,
	}); err != nil {
		logger.WithError(err).Fatal("failed to initialize tracer")
	}
	defer tracer.Shutdown()

	seedDemoModel(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runDispatcherSimulation(ctx, logger)

	if cfg.Server.Enabled {
		srv := newServer(cfg)
		go func() {
			logger.WithFields(logrus.Fields{
				"component": "server",
				"addr":      srv.Addr,
			}).Info("trace-agent HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("HTTP server stopped")
			}
		}()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	} else {
		<-ctx.Done()
	}
}

func newServer(cfg *config.Config) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.HandleFunc("/registry.csv", func(w http.ResponseWriter, req *http.Request) {
		tmp := os.TempDir() + "/registry-dump.csv"
		if err := tracer.DumpRegistry(tmp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.ServeFile(w, req, tmp)
	})

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}
}

// seedDemoModel registers a small synthetic tensor set so /registry.csv and
// DISK-classified ops have something real to show.
func seedDemoModel(logger *logrus.Logger) {
	const numLayers = 4
	addr := uintptr(0x100000)
	offset := uint64(0)

	for layer := 0; layer < numLayers; layer++ {
		for _, suffix := range []string{"attn_q.weight", "attn_k.weight", "attn_v.weight", "ffn_up.weight", "ffn_down.weight"} {
			name := fmt.Sprintf("blk.%d.%s", layer, suffix)
			const size = 4096 * 4096 * 4
			tracer.RegisterTensor(name, addr, offset, size)
			tracer.RegisterDiskOffset(name, offset)
			addr += size
			offset += size
		}
	}
	tracer.RegisterTensor("token_embd.weight", addr, offset, 32000*4096*4)
	tracer.RegisterDiskOffset("token_embd.weight", offset)

	logger.WithField("component", "demo").Info("seeded synthetic tensor registry")
}

// runDispatcherSimulation stands in for the real op dispatcher (out of
// scope per §1): it drives LogOperation/buffer lifecycle calls at a steady
// rate until ctx is canceled.
func runDispatcherSimulation(ctx context.Context, logger *logrus.Logger) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	kvCacheID := uint64(0xdead0000)
	tracer.LogBufferAlloc(kvCacheID, 0x900000, 1<<24, "KVCache_CPU", "CPU", uint8(tensor.BufferUsageCompute), record.NoLayer)
	defer tracer.LogBufferDealloc(kvCacheID)

	tracer.SetPhase(record.PhasePrompt)
	var tokenID uint32

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			layer := tokenID % 4
			name := fmt.Sprintf("blk.%d.attn_q.weight", layer)

			dst := tensor.View{
				Name:       fmt.Sprintf("blk.%d.attn_out", layer),
				DataAddr:   uintptr(0x900000 + uintptr(tokenID)),
				OpKind:     uint8(tokenID % 8),
				NumSources: 1,
				Sources: [tensor.MaxSources]tensor.Source{
					{
						Present:  true,
						Name:     name,
						DataAddr: uintptr(0x100000 + uintptr(layer)*5*4096*4096*4),
						ByteSize: 4096 * 4096 * 4,
						Buffer:   tensor.Buffer{Present: true, Usage: tensor.BufferUsageWeights},
					},
				},
			}
			tracer.LogOperation(dst, 0)

			tokenID++
			if tokenID == 16 {
				tracer.SetPhase(record.PhaseGenerate)
			}
			tracer.SetTokenID(tokenID)
		}
	}
}
