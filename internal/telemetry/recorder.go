package telemetry

import (
	"context"

	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/charmbracelet/log"
)

// Recorder is the fire-and-forget facade used while a command runs. Write
// failures are logged at debug level and otherwise ignored.
type Recorder struct {
	ctx       context.Context
	store     *Store
	logger    *log.Logger
	command   string
	requestID string
}

func NewRecorder(ctx context.Context, store *Store, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{ctx: ctx, store: store, logger: logger}
}

// SetRequestID tags subsequent events with the invocation correlation id.
func (r *Recorder) SetRequestID(id string) { r.requestID = id }

func (r *Recorder) RecordCommand(name, output string, flags []string) {
	r.command = name
	r.append(Event{Kind: KindCommand, Command: name, Output: output, Flags: flags})
}

func (r *Recorder) RecordException(err error, fault string) {
	if err == nil {
		return
	}
	r.append(Event{Kind: KindException, Command: r.command, Fault: fault, Message: err.Error()})
}

func (r *Recorder) append(e Event) {
	if r == nil || r.store == nil {
		return
	}
	e.RequestID = r.requestID
	if err := r.store.Append(context.WithoutCancel(r.ctx), e); err != nil {
		r.logger.Debug("telemetry write failed", "err", err)
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) RecordCommand(string, string, []string) {}
func (Nop) RecordException(error, string)          {}
