package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/epimex/screenbot/internal/models"
)

// senderQueueSize bounds the per-respondent inbound queue. A respondent
// who floods faster than the engine replies gets excess messages dropped.
const senderQueueSize = 16

// ResponseHandler turns one inbound message into a reply. An empty reply
// means nothing should be sent.
type ResponseHandler interface {
	HandleMessage(ctx context.Context, from string, body string) string
}

// Dispatcher consumes the transport's Responses channel and feeds each
// message to the handler. Messages from the same respondent are handled
// strictly in order, one at a time; different respondents proceed in
// parallel.
type Dispatcher struct {
	svc     Service
	handler ResponseHandler

	mu     sync.Mutex
	queues map[string]chan models.Response
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher wiring the transport to the handler.
func NewDispatcher(svc Service, handler ResponseHandler) *Dispatcher {
	return &Dispatcher{
		svc:     svc,
		handler: handler,
		queues:  make(map[string]chan models.Response),
	}
}

// Start launches the dispatch loop. It returns immediately; the loop runs
// until ctx is cancelled or the Responses channel closes.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
	slog.Info("Dispatcher started")
}

// Wait blocks until the dispatch loop and all per-respondent workers have
// drained.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	defer d.closeQueues()

	responses := d.svc.Responses()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Dispatcher stopping, context cancelled")
			return
		case resp, ok := <-responses:
			if !ok {
				slog.Debug("Dispatcher stopping, responses channel closed")
				return
			}
			d.enqueue(ctx, resp)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, resp models.Response) {
	canonical, err := d.svc.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("Dispatcher dropping message with invalid sender", "from", resp.From, "error", err)
		return
	}
	resp.From = canonical

	d.mu.Lock()
	queue, ok := d.queues[canonical]
	if !ok {
		queue = make(chan models.Response, senderQueueSize)
		d.queues[canonical] = queue
		d.wg.Add(1)
		go d.worker(ctx, canonical, queue)
	}
	d.mu.Unlock()

	select {
	case queue <- resp:
	default:
		slog.Warn("Dispatcher queue full, dropping message", "from", canonical)
	}
}

// worker handles one respondent's messages serially so the interview
// never interleaves replies for the same phone number.
func (d *Dispatcher) worker(ctx context.Context, from string, queue <-chan models.Response) {
	defer d.wg.Done()
	for resp := range queue {
		reply := d.handler.HandleMessage(ctx, "+"+resp.From, resp.Body)
		if reply == "" {
			continue
		}
		if err := d.svc.SendMessage(ctx, resp.From, reply); err != nil {
			slog.Error("Dispatcher failed to send reply", "to", from, "error", err)
		}
	}
}

func (d *Dispatcher) closeQueues() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for from, queue := range d.queues {
		close(queue)
		delete(d.queues, from)
	}
}
