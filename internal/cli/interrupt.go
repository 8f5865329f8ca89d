package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler manages graceful shutdown with friendly messages.
type InterruptHandler struct {
	writer      io.Writer
	activity    string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts sets up signal handling and returns a context that will be
// canceled on interrupt. activity names what is being interrupted, e.g. "Download".
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, activity string) context.Context {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx = h.watch(ctx, activity, sigChan)
	go func() {
		<-ctx.Done()
		signal.Stop(sigChan)
	}()
	return ctx
}

// watch cancels the returned context when a signal arrives on sigChan.
func (h *InterruptHandler) watch(ctx context.Context, activity string, sigChan <-chan os.Signal) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.activity = activity
	h.mu.Unlock()

	go func() {
		select {
		case <-sigChan:
			h.mu.Lock()
			if !h.interrupted {
				h.interrupted = true
				h.showInterruptMessage()
			}
			h.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

// showInterruptMessage displays a friendly interrupt message.
func (h *InterruptHandler) showInterruptMessage() {
	activity := h.activity
	if activity == "" {
		activity = "Operation"
	}

	msg := "\n\n" + FormatWarning(activity+" interrupted!")
	msg += "\n" + FormatInfo("Nothing half-finished was kept; run the command again to start over.")
	msg += "\n" + FormatInfo("See you later! "+DishIcon) + "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
