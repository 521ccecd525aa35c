package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epimex/screenbot/internal/genai"
	"github.com/epimex/screenbot/internal/interview"
	"github.com/epimex/screenbot/internal/lockfile"
	"github.com/epimex/screenbot/internal/messaging"
	"github.com/epimex/screenbot/internal/reminders"
	"github.com/epimex/screenbot/internal/store"
	"github.com/epimex/screenbot/internal/twiliowhatsapp"
	"github.com/epimex/screenbot/internal/whatsapp"
)

// Transport selection values for RunOptions.Transport.
const (
	TransportWhatsmeow = "whatsmeow"
	TransportTwilio    = "twilio"
)

const shutdownTimeout = 10 * time.Second

// RunOptions bundles per-module options for Run.
type RunOptions struct {
	Transport string // TransportWhatsmeow (default) or TransportTwilio
	StateDir  string // state directory guarded by the instance lock
	StoreDSN  string // participant database DSN; empty selects in-memory

	WhatsApp  []whatsapp.Option
	Twilio    []twiliowhatsapp.Option
	GenAI     []genai.Option
	Reminders []reminders.Option
	API       []Option
}

// Run wires the full service together and blocks until SIGINT or SIGTERM.
func Run(opts RunOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Only one instance may serve a state directory.
	if opts.StateDir != "" {
		lock, err := lockfile.AcquireLock(opts.StateDir)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := openStore(opts.StoreDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	engineOpts := []interview.Option{}
	gen, err := genai.NewClient(opts.GenAI...)
	if err != nil {
		slog.Warn("GenAI unavailable, conversations will use canned texts", "error", err)
	} else {
		engineOpts = append(engineOpts, interview.WithGenerator(gen), interview.WithIntentDetector(gen))
	}
	engine := interview.NewEngine(st, engineOpts...)

	msgService, err := openTransport(opts)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	dispatcher := messaging.NewDispatcher(msgService, engine)
	dispatcher.Start(ctx)

	// Receipts are informational; drain them so the transport never
	// blocks on a full channel.
	go func() {
		for receipt := range msgService.Receipts() {
			slog.Debug("Delivery receipt", "to", receipt.To, "status", receipt.Status)
		}
	}()

	reminderSvc := reminders.NewService(st, reminderGenerator(gen), msgService, opts.Reminders...)
	if err := reminderSvc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reminder service: %w", err)
	}
	defer reminderSvc.Stop()

	server := NewServer(st, engine, msgService, opts.API...)
	serverErr := server.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			cancel()
			dispatcher.Wait()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Status server shutdown failed", "error", err)
	}

	cancel()
	dispatcher.Wait()
	slog.Info("ScreenBot shut down cleanly")
	return nil
}

// openStore selects the participant database backend from the DSN.
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Warn("No participant database configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// openTransport builds the configured messaging service.
func openTransport(opts RunOptions) (messaging.Service, error) {
	switch opts.Transport {
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(opts.Twilio...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case TransportWhatsmeow, "":
		client, err := whatsapp.NewClient(opts.WhatsApp...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}
}

// reminderGenerator adapts a possibly-nil genai client to the reminder
// service's Generator.
func reminderGenerator(gen *genai.Client) reminders.Generator {
	if gen == nil {
		return templateReminders{}
	}
	return gen
}

// templateReminders produces reminder texts without an LLM.
type templateReminders struct{}

func (templateReminders) ReminderMessage(ctx context.Context, kind, name, appointmentInfo string) (string, error) {
	switch kind {
	case reminders.KindAppointment:
		return fmt.Sprintf("Hola %s 😊 Te recordamos tu cita con el estudio EPIMex (%s). ¡Te esperamos!", name, appointmentInfo), nil
	case reminders.KindFollowUp:
		return fmt.Sprintf("Hola %s 😊 Eres elegible para el estudio EPIMex y aún no agendas tu cita. Escríbenos cuando gustes para coordinarla.", name), nil
	default:
		return fmt.Sprintf("Hola %s, te escribimos del estudio EPIMex.", name), nil
	}
}
