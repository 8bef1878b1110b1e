// Package devserver is a local stand-in for the remote assistant service.
// It speaks the same wire contract; transcription and speech synthesis are
// replaced by descriptions of the received audio and generated tones.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vozchat/internal/audio"
	"vozchat/internal/domain"
	"vozchat/internal/observability"
)

const (
	toneSampleRate = 16000
	maxUploadBytes = 32 << 20
)

// Server holds the state of one assistant conversation.
type Server struct {
	logger *slog.Logger

	mu      sync.Mutex
	profile *domain.ProfileData
	audio   []byte
}

func New() *Server {
	return &Server{logger: observability.WithFields("component", "devserver")}
}

// Routes wires the assistant endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Post("/setup", s.handleSetup)
	r.Post("/receive", s.handleReceive)
	r.Get("/audio", s.handleAudio)

	return r
}

// Run serves the routes on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("assistant stand-in listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Servidor operativo"})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var profile domain.ProfileData
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid profile: %v", err))
		return
	}

	welcome := welcomeMessage(profile)
	s.mu.Lock()
	s.profile = &profile
	s.audio = synthesize(welcome)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{
		"message":     "Datos del usuario recibidos.",
		"welcome_msg": welcome,
	})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	profile := s.profile
	s.mu.Unlock()
	if profile == nil {
		respondError(w, http.StatusInternalServerError, "assistant not configured; call /setup first")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("missing audio file field: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("read audio: %v", err))
		return
	}
	length, err := audio.WAVDuration(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("audio received", "filename", header.Filename, "bytes", len(data), "duration", length)

	transcription := fmt.Sprintf("(%.1f s de audio)", length.Seconds())
	reply := fmt.Sprintf("%s, he escuchado %.1f segundos de audio. Cuénteme más, por favor.", firstName(profile.FullName), length.Seconds())

	s.mu.Lock()
	s.audio = synthesize(reply)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{
		"transcription": transcription,
		"response":      reply,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	data := s.audio
	s.mu.Unlock()

	if len(data) == 0 {
		respondError(w, http.StatusNotFound, "No se encontró el audio.")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// withLogging logs every request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"session_id", r.Header.Get("X-Session-ID"),
			"elapsed", time.Since(start),
		)
	})
}

func welcomeMessage(profile domain.ProfileData) string {
	name := firstName(profile.FullName)
	if name == "" {
		return "Hola, soy María. ¿De qué le apetece hablar hoy?"
	}
	return fmt.Sprintf("Hola %s, soy María. ¿De qué le apetece hablar hoy?", name)
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// synthesize stands in for text-to-speech: a tone whose length follows the text.
func synthesize(text string) []byte {
	length := time.Duration(len([]rune(text))) * 40 * time.Millisecond
	if length > 6*time.Second {
		length = 6 * time.Second
	}
	if length < 300*time.Millisecond {
		length = 300 * time.Millisecond
	}
	wav, err := audio.EncodeWAV(audio.Tone(440, length, toneSampleRate), toneSampleRate, 1)
	if err != nil {
		return nil
	}
	return wav
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
