package main

import (
	"errors"
	"testing"

	"vozchat/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonReady:             "Listo",
		domain.SessionReasonRecordingStarted:  "Escuchando...",
		domain.SessionReasonUploading:         "Enviando audio...",
		domain.SessionReasonEmptyCapture:      "No se ha grabado audio",
		domain.SessionReasonFetchingAudio:     "Preparando respuesta...",
		domain.SessionReasonPlaybackStarted:   "Reproduciendo respuesta",
		domain.SessionReasonAudioUnavailable:  "Respuesta sin audio",
		domain.SessionReasonProfileSubmitting: "Enviando datos...",
		domain.SessionReasonClosed:            "Sesión cerrada",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:          "Error al iniciar",
		domain.ErrorCodePermissionDenied: "Permiso de micrófono denegado",
		domain.ErrorCodeNetwork:          "Sin conexión con el asistente",
		domain.ErrorCodeService:          "El asistente devolvió un error",
		domain.ErrorCodeDecode:           "Audio de respuesta no válido",
		domain.ErrorCodePlaybackDevice:   "Salida de audio no disponible",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Error desconocido" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.StopRecording(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error from intent, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.SessionStateIdle || status.Message != "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if history := app.GetHistory(); history == nil || len(history) != 0 {
		t.Fatalf("expected empty non-nil history, got %+v", history)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "boot" {
		t.Fatalf("unexpected runtime info: %+v", info)
	}
}

func TestEventsWithoutContextAreDropped(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	app.MessageAppended(domain.Sent("hola"))
	app.HistoryReset(nil)
	app.PlaybackChanged(true)
	app.SessionError(domain.ErrorCodeNetwork, "down")
}
