package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"vozchat/internal/bootstrap"
	"vozchat/internal/config"
	"vozchat/internal/domain"
	"vozchat/internal/usecase"
)

const (
	eventSession  = "vozchat:session"
	eventMessage  = "vozchat:message"
	eventHistory  = "vozchat:history"
	eventPlayback = "vozchat:playback"
	eventError    = "vozchat:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	session *usecase.ChatSession
	cfg     config.Config
	bootErr error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.session = services.Session
	services.StartMetrics(ctx)
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.session != nil {
		a.session.Dispose()
	}
}

// SubmitProfile sends the profile form and opens the conversation.
func (a *App) SubmitProfile(profile domain.ProfileData) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.session.SubmitProfile(a.ctx, profile)
}

// StartRecording is bound to pressing the record control.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.session.StartRecording(a.ctx); err != nil {
		return a.session.Status(), err
	}
	return a.session.Status(), nil
}

// StopRecording is bound to releasing the record control.
func (a *App) StopRecording() (domain.RoundTrip, error) {
	if err := a.requireReady(); err != nil {
		return domain.RoundTrip{}, err
	}
	return a.session.StopRecording(a.ctx)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.session == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.session.Status()
}

// GetHistory returns the chat thread for an initial render.
func (a *App) GetHistory() []domain.ChatMessage {
	if a.session == nil {
		return []domain.ChatMessage{}
	}
	return a.session.History()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"baseUrl":          a.cfg.Remote.BaseURL,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"player":           a.cfg.Audio.PlayerCommand,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.session == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// MessageAppended emits one new chat bubble.
func (a *App) MessageAppended(message domain.ChatMessage) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventMessage, message)
}

// HistoryReset replaces the whole chat thread in the UI.
func (a *App) HistoryReset(messages []domain.ChatMessage) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventHistory, messages)
}

func (a *App) PlaybackChanged(active bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPlayback, map[string]bool{"active": active})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Listo"
	case domain.SessionReasonRecordingStarted:
		return "Escuchando..."
	case domain.SessionReasonCaptureFailed:
		return "No se pudo usar el micrófono"
	case domain.SessionReasonUploading:
		return "Enviando audio..."
	case domain.SessionReasonEmptyCapture:
		return "No se ha grabado audio"
	case domain.SessionReasonUploadFailed:
		return "No se pudo enviar el audio"
	case domain.SessionReasonFetchingAudio:
		return "Preparando respuesta..."
	case domain.SessionReasonPlaybackStarted:
		return "Reproduciendo respuesta"
	case domain.SessionReasonAudioUnavailable:
		return "Respuesta sin audio"
	case domain.SessionReasonPlaybackFailed:
		return "No se pudo reproducir la respuesta"
	case domain.SessionReasonProfileSubmitting:
		return "Enviando datos..."
	case domain.SessionReasonProfileFailed:
		return "No se pudieron enviar los datos"
	case domain.SessionReasonClosed:
		return "Sesión cerrada"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Error al iniciar"
	case domain.ErrorCodePermissionDenied:
		return "Permiso de micrófono denegado"
	case domain.ErrorCodeDeviceUnavailable:
		return "Micrófono no disponible"
	case domain.ErrorCodeInvalidState:
		return "Acción no disponible ahora"
	case domain.ErrorCodeNetwork:
		return "Sin conexión con el asistente"
	case domain.ErrorCodeService:
		return "El asistente devolvió un error"
	case domain.ErrorCodeDecode:
		return "Audio de respuesta no válido"
	case domain.ErrorCodePlaybackDevice:
		return "Salida de audio no disponible"
	case domain.ErrorCodeProfileInvalid:
		return "Revise los datos del formulario"
	default:
		if detail == "" {
			return "Error desconocido"
		}
		return detail
	}
}
