package cli

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"signconnect/tutor/internal/api"
	"signconnect/tutor/internal/auth"
	"signconnect/tutor/internal/config"
	"signconnect/tutor/internal/health"
	"signconnect/tutor/internal/llm"
	"signconnect/tutor/internal/store"
	"signconnect/tutor/internal/stt"
	"signconnect/tutor/internal/tts"
	"signconnect/tutor/internal/tutor"
	"signconnect/tutor/internal/wsconn"
)

const grpcServiceName = "signconnect.tutor"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tutoring server (HTTP, websocket and gRPC health)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignored if missing)
			_ = godotenv.Load()
			return serve(config.Load())
		},
	}
}

func serve(cfg config.Config) error {
	if cfg.Server.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	st := store.New()
	signer := auth.NewSigner(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, cfg.Auth.SkewSeconds)
	reg := wsconn.NewRegistry()

	wss := &wsconn.Server{
		Store:          st,
		Signer:         signer,
		Reg:            reg,
		Options:        sessionOptions(cfg),
		Deps:           collaborators(cfg, st),
		OriginPatterns: originHosts(cfg.Server.AllowedOrigins),
	}
	ready := func(ctx context.Context) health.HealthStatus { return health.CheckAll(ctx, cfg) }
	router := api.NewRouter(api.NewHandlers(st, signer, ready), wss.HandleSession, cfg.Server.AllowedOrigins)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC health with keepalive for fast death detection
	kap := keepalive.ServerParameters{
		MaxConnectionIdle:     2 * time.Minute,
		MaxConnectionAge:      15 * time.Minute,
		MaxConnectionAgeGrace: 30 * time.Second,
		Time:                  30 * time.Second,
		Timeout:               10 * time.Second,
	}
	kasp := keepalive.EnforcementPolicy{
		MinTime:             10 * time.Second,
		PermitWithoutStream: true,
	}
	gs := grpc.NewServer(grpc.KeepaliveParams(kap), grpc.KeepaliveEnforcementPolicy(kasp))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(grpcServiceName, healthpb.HealthCheckResponse_SERVING)

	gl, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	go func() {
		log.Printf("grpc health listening on %s", cfg.Server.GRPCAddr)
		if err := gs.Serve(gl); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		hs.Shutdown()
		reg.CloseAll("server shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		gs.GracefulStop()
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func sessionOptions(cfg config.Config) tutor.Options {
	return tutor.Options{
		SilenceBuffer:   cfg.Session.SilenceBuffer,
		SuccessCooldown: cfg.Session.SuccessCooldown,
		AutoFeedback:    cfg.Session.AutoFeedback,
		GenerateTimeout: cfg.Gemini.Timeout + 2*time.Second,
		QuizLength:      cfg.Quiz.Length,
		QuizAttempts:    cfg.Quiz.MaxAttempts,
		QuizTick:        cfg.Quiz.Tick,
		AnnouncePause:   cfg.Quiz.AnnouncePause,
		ResultPause:     cfg.Quiz.ResultPause,
		OutboundQueue:   cfg.Session.OutboundQueue,
	}
}

// collaborators picks the providers once; each session gets its own
// recognizer connection. Missing credentials leave that capability a no-op.
func collaborators(cfg config.Config, st *store.Store) wsconn.DepsFunc {
	var gen tutor.Generator
	if g, err := llm.NewGemini(context.Background(), llm.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	}); err != nil {
		log.Printf("[llm] generator disabled: %v", err)
	} else {
		gen = g
	}

	var synth tutor.Synthesizer
	if cfg.Eleven.APIKey == "" {
		log.Printf("[tts] synthesizer disabled: %v", tts.ErrNotConfigured)
	} else {
		synth = tts.NewElevenLabs(tts.Config{
			APIKey:     cfg.Eleven.APIKey,
			VoiceID:    cfg.Eleven.VoiceID,
			ModelID:    cfg.Eleven.ModelID,
			Timeout:    cfg.Eleven.Timeout,
			Stability:  cfg.Eleven.Stability,
			Similarity: cfg.Eleven.Similarity,
		})
	}

	dg := stt.DGConfig{
		Model:      cfg.Deepgram.Model,
		Language:   cfg.Deepgram.Language,
		Interim:    true,
		VADEvents:  true,
		BaseURL:    cfg.Deepgram.WSURL,
		Encoding:   cfg.Deepgram.Encoding,
		SampleRate: cfg.Deepgram.SampleRate,
	}

	return func(sessionID string) tutor.Deps {
		return tutor.Deps{
			Recognizer:  stt.NewRecognizer(dg, cfg.Deepgram.APIKey),
			Generator:   gen,
			Synthesizer: synth,
			Recorder:    st,
		}
	}
}

// originHosts turns configured origins into the host patterns the
// websocket accept check expects.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}
