package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port           string
		GRPCAddr       string
		LogLevel       string
		AllowedOrigins []string
	}
	Session struct {
		SilenceBuffer   time.Duration
		SuccessCooldown time.Duration
		AutoFeedback    time.Duration
		OutboundQueue   int
	}
	Quiz struct {
		Length        int
		MaxAttempts   int
		Tick          time.Duration
		AnnouncePause time.Duration
		ResultPause   time.Duration
	}
	Deepgram struct {
		APIKey     string
		Model      string
		Language   string
		WSURL      string
		Encoding   string
		SampleRate int
	}
	Eleven struct {
		APIKey     string
		VoiceID    string
		ModelID    string
		Timeout    time.Duration
		Stability  float64
		Similarity float64
	}
	Gemini struct {
		APIKey  string
		Model   string
		Timeout time.Duration
	}
	Auth struct {
		TokenSecret string
		TokenTTL    time.Duration
		SkewSeconds int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("session.silence_buffer_ms", 1000)
	v.SetDefault("session.success_cooldown_ms", 2500)
	v.SetDefault("session.auto_feedback_ms", 4000)
	v.SetDefault("session.outbound_queue", 64)

	v.SetDefault("quiz.length", 8)
	v.SetDefault("quiz.max_attempts", 3)
	v.SetDefault("quiz.tick_ms", 1000)
	v.SetDefault("quiz.announce_pause_ms", 1500)
	v.SetDefault("quiz.result_pause_ms", 1500)

	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")

	v.SetDefault("elevenlabs.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("elevenlabs.model_id", "eleven_monolingual_v1")
	v.SetDefault("elevenlabs.timeout_s", 15)
	v.SetDefault("elevenlabs.stability", 0.5)
	v.SetDefault("elevenlabs.similarity", 0.75)

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout_s", 8)

	v.SetDefault("auth.token_ttl_min", 120)
	v.SetDefault("auth.skew_s", 60)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.grpc_addr", "GRPC_ADDR")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	v.BindEnv("session.silence_buffer_ms", "SILENCE_BUFFER_MS")
	v.BindEnv("session.success_cooldown_ms", "SUCCESS_COOLDOWN_MS")
	v.BindEnv("session.auto_feedback_ms", "AUTO_FEEDBACK_MS")
	v.BindEnv("session.outbound_queue", "OUTBOUND_QUEUE")

	v.BindEnv("quiz.length", "QUIZ_LENGTH")
	v.BindEnv("quiz.max_attempts", "QUIZ_MAX_ATTEMPTS")
	v.BindEnv("quiz.tick_ms", "QUIZ_TICK_MS")
	v.BindEnv("quiz.announce_pause_ms", "QUIZ_ANNOUNCE_PAUSE_MS")
	v.BindEnv("quiz.result_pause_ms", "QUIZ_RESULT_PAUSE_MS")

	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
	v.BindEnv("deepgram.ws_url", "DEEPGRAM_WS_URL")
	v.BindEnv("deepgram.encoding", "DEEPGRAM_ENCODING")
	v.BindEnv("deepgram.sample_rate", "DEEPGRAM_SAMPLE_RATE")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")
	v.BindEnv("elevenlabs.timeout_s", "ELEVENLABS_TIMEOUT_S")
	v.BindEnv("elevenlabs.stability", "ELEVENLABS_STABILITY")
	v.BindEnv("elevenlabs.similarity", "ELEVENLABS_SIMILARITY")

	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("gemini.model", "GEMINI_MODEL")
	v.BindEnv("gemini.timeout_s", "GEMINI_TIMEOUT_S")

	v.BindEnv("auth.token_secret", "SESSION_TOKEN_SECRET")
	v.BindEnv("auth.token_ttl_min", "SESSION_TOKEN_TTL_MIN")
	v.BindEnv("auth.skew_s", "SESSION_TOKEN_SKEW_S")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.GRPCAddr = v.GetString("server.grpc_addr")
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.AllowedOrigins = splitList(v.GetString("server.allowed_origins"))

	c.Session.SilenceBuffer = millis(v, "session.silence_buffer_ms")
	c.Session.SuccessCooldown = millis(v, "session.success_cooldown_ms")
	c.Session.AutoFeedback = millis(v, "session.auto_feedback_ms")
	c.Session.OutboundQueue = v.GetInt("session.outbound_queue")

	c.Quiz.Length = v.GetInt("quiz.length")
	c.Quiz.MaxAttempts = v.GetInt("quiz.max_attempts")
	c.Quiz.Tick = millis(v, "quiz.tick_ms")
	c.Quiz.AnnouncePause = millis(v, "quiz.announce_pause_ms")
	c.Quiz.ResultPause = millis(v, "quiz.result_pause_ms")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")
	c.Deepgram.WSURL = v.GetString("deepgram.ws_url")
	c.Deepgram.Encoding = v.GetString("deepgram.encoding")
	c.Deepgram.SampleRate = v.GetInt("deepgram.sample_rate")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")
	c.Eleven.Timeout = time.Duration(v.GetInt("elevenlabs.timeout_s")) * time.Second
	c.Eleven.Stability = v.GetFloat64("elevenlabs.stability")
	c.Eleven.Similarity = v.GetFloat64("elevenlabs.similarity")

	c.Gemini.APIKey = v.GetString("gemini.api_key")
	c.Gemini.Model = v.GetString("gemini.model")
	c.Gemini.Timeout = time.Duration(v.GetInt("gemini.timeout_s")) * time.Second

	c.Auth.TokenSecret = v.GetString("auth.token_secret")
	c.Auth.TokenTTL = time.Duration(v.GetInt("auth.token_ttl_min")) * time.Minute
	c.Auth.SkewSeconds = v.GetInt("auth.skew_s")

	log.Printf("config loaded: port=%s grpc=%s deepgram=%t elevenlabs=%t gemini=%t auth=%t",
		c.Server.Port, c.Server.GRPCAddr,
		c.Deepgram.APIKey != "", c.Eleven.APIKey != "", c.Gemini.APIKey != "", c.Auth.TokenSecret != "")
	return c
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Millisecond
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toString(v any) string { return fmt.Sprint(v) }
