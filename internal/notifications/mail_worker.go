package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/pkg/logger"
	"github.com/charlesng35/groupdesk/pkg/mail"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var mailTemplates = map[EventType]mailTemplate{
	EventInviteReceived: {
		subject: template.Must(template.New("subject").Parse(`You're invited to {{index .Data "group_name"}}`)),
		body: template.Must(template.New("body").Parse(`Hello,

You have been invited to join the group booking "{{index .Data "group_name"}}".
{{with index .Data "personal_message"}}
Message from the organiser:
{{.}}
{{end}}
Invitation: {{.InvitationID}}
Respond before {{index .Data "expires_at"}}.
`)),
	},
	EventInviteReminder: {
		subject: template.Must(template.New("subject").Parse(`Reminder: {{index .Data "group_name"}} is waiting for your answer`)),
		body: template.Must(template.New("body").Parse(`Hello,

Your invitation to "{{index .Data "group_name"}}" is still open.

Invitation: {{.InvitationID}}
It expires at {{index .Data "expires_at"}}.
`)),
	},
}

// MailWorker consumes queued notification tasks and e-mails invitees that were
// invited by address. Events addressed to user ids are left to the identity
// provider's own channels.
type MailWorker struct {
	mailer mail.Mailer
	log    *zap.Logger
}

// NewMailWorker constructs a worker sending through mailer.
func NewMailWorker(mailer mail.Mailer) (*MailWorker, error) {
	if mailer == nil {
		return nil, errors.New("mail worker: mailer is required")
	}
	return &MailWorker{mailer: mailer, log: logger.WithModule("mail-worker")}, nil
}

// Register binds the worker to every task type the queue sink produces.
func (w *MailWorker) Register(mux *asynq.ServeMux) {
	for eventType := range mailEvents {
		mux.HandleFunc(TaskType(eventType), w.ProcessTask)
	}
}

// ProcessTask renders and sends one event. Malformed payloads are not retried.
func (w *MailWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return fmt.Errorf("decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}

	tmpl, ok := mailTemplates[event.Type]
	address := strings.TrimSpace(event.Email)
	if !ok || address == "" {
		w.log.Debug("event not mailed", zap.String("event", string(event.Type)), zap.String("event_id", event.ID))
		return nil
	}

	subject, err := render(tmpl.subject, event)
	if err != nil {
		return fmt.Errorf("render subject: %v: %w", err, asynq.SkipRetry)
	}
	body, err := render(tmpl.body, event)
	if err != nil {
		return fmt.Errorf("render body: %v: %w", err, asynq.SkipRetry)
	}

	err = w.mailer.Send(ctx, mail.Message{To: []string{address}, Subject: subject, Body: body})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		w.log.Warn("smtp disabled, dropping mail", zap.String("event", string(event.Type)), zap.String("event_id", event.ID))
		return nil
	}
	if err != nil {
		return err
	}

	w.log.Info("mail sent",
		zap.String("event", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.String("invitation_id", event.InvitationID),
	)
	return nil
}

func render(tmpl *template.Template, event Event) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, event); err != nil {
		return "", err
	}
	return b.String(), nil
}
