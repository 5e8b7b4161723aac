// Package notify sends the workflow emails. Callers enqueue and return; a
// worker resolves recipients, renders the template and hands the message to
// a Mailer. Delivery failures are logged and counted, never returned.
package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	analysis "rcaflow/internal/analysis/models"
	events "rcaflow/internal/events/models"
	"rcaflow/internal/notify/metrics"
	tenancy "rcaflow/internal/tenancy/models"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/email"
	"rcaflow/pkg/requestcontext"
)

const (
	DefaultQueueSize = 256
	sendTimeout      = 30 * time.Second
)

// Recipients resolves the active users of a company at or above a
// permission level.
type Recipients interface {
	ListRecipients(ctx context.Context, companyID id.CompanyID, min id.PermissionLevel) ([]tenancy.Recipient, error)
}

type job struct {
	kind      string
	template  string
	subject   string
	companyID id.CompanyID
	// min selects company users; zero means only the explicit addresses.
	min       id.PermissionLevel
	addresses []string
	view      view
	requestID string
}

type Notifier struct {
	recipients Recipients
	mailer     Mailer
	baseURL    string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queue = make(chan job, size)
		}
	}
}

// WithBaseURL sets the front-end origin used for links in the emails.
func WithBaseURL(base string) Option {
	return func(n *Notifier) {
		n.baseURL = base
	}
}

// New starts the delivery worker. Close drains the queue.
func New(recipients Recipients, mailer Mailer, opts ...Option) *Notifier {
	n := &Notifier{
		recipients: recipients,
		mailer:     mailer,
		baseURL:    "http://localhost:3000",
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.queue == nil {
		n.queue = make(chan job, DefaultQueueSize)
	}
	n.wg.Add(1)
	go n.drain()
	return n
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) EventReported(ctx context.Context, e *events.ReportedEvent) {
	n.enqueue(ctx, job{
		kind:      "event_reported",
		template:  tmplEventReported,
		subject:   "Nuevo evento reportado: " + e.Title,
		companyID: e.CompanyID,
		min:       id.PermissionEditor,
		view: view{
			Title: e.Title,
			Site:  e.Site,
			Link:  n.link("/eventos", url.Values{"id": {e.ID.String()}}),
			Fields: map[string]string{
				"equipment":  e.Equipment,
				"date":       e.Date,
				"priority":   string(e.Priority),
				"reportedBy": e.ReportedByName,
			},
		},
	})
}

func (n *Notifier) ValidationRequested(ctx context.Context, a *analysis.Analysis) {
	n.enqueue(ctx, job{
		kind:      "validation_requested",
		template:  tmplValidationRequested,
		subject:   "Acciones pendientes de validación: " + a.Event.Title,
		companyID: a.CompanyID,
		min:       id.PermissionValidator,
		view: n.analysisView(a, analysis.StepValidation, map[string]string{
			"actions": strconv.Itoa(len(a.Actions)),
		}),
	})
}

// ActionRejected writes to the action's responsible when an address was
// recorded, and to the company editors otherwise.
func (n *Notifier) ActionRejected(ctx context.Context, a *analysis.Analysis, action analysis.PlannedAction, v analysis.Validation) {
	j := job{
		kind:      "action_rejected",
		template:  tmplActionRejected,
		subject:   "Acción rechazada: " + a.Event.Title,
		companyID: a.CompanyID,
		view: n.analysisView(a, analysis.StepActionPlan, map[string]string{
			"action":    action.Description,
			"validator": v.ValidatorName,
			"comment":   v.Comment,
		}),
	}
	if email.Valid(action.ResponsibleEmail) {
		j.addresses = []string{action.ResponsibleEmail}
		j.view.RecipientName = action.Responsible
	} else {
		j.min = id.PermissionEditor
	}
	n.enqueue(ctx, j)
}

func (n *Notifier) AnalysisFinalized(ctx context.Context, a *analysis.Analysis) {
	n.enqueue(ctx, job{
		kind:      "analysis_finalized",
		template:  tmplAnalysisFinalized,
		subject:   "Análisis finalizado: " + a.Event.Title,
		companyID: a.CompanyID,
		min:       id.PermissionEditor,
		view: n.analysisView(a, analysis.StepResults, map[string]string{
			"efficacyDue": a.EfficacyDueDate,
		}),
	})
}

func (n *Notifier) EfficacyDue(ctx context.Context, a *analysis.Analysis) {
	n.enqueue(ctx, job{
		kind:      "efficacy_due",
		template:  tmplEfficacyDue,
		subject:   "Verificación de eficacia pendiente: " + a.Event.Title,
		companyID: a.CompanyID,
		min:       id.PermissionValidator,
		view: n.analysisView(a, analysis.StepResults, map[string]string{
			"efficacyDue": a.EfficacyDueDate,
		}),
	})
}

func (n *Notifier) analysisView(a *analysis.Analysis, step analysis.Step, fields map[string]string) view {
	return view{
		Title: a.Event.Title,
		Site:  a.Event.Site,
		Link: n.link("/analisis", url.Values{
			"id":   {a.ID.String()},
			"step": {strconv.Itoa(int(step))},
		}),
		Fields: fields,
	}
}

func (n *Notifier) link(path string, q url.Values) string {
	return n.baseURL + path + "?" + q.Encode()
}

func (n *Notifier) enqueue(ctx context.Context, j job) {
	j.requestID = requestcontext.RequestID(ctx)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.WarnContext(ctx, "notifier closed, dropping email", "kind", j.kind, "request_id", j.requestID)
		return
	}
	select {
	case n.queue <- j:
	default:
		n.logger.WarnContext(ctx, "email queue full, dropping notification", "kind", j.kind, "request_id", j.requestID)
		if n.metrics != nil {
			n.metrics.IncrementDropped()
		}
	}
}

func (n *Notifier) drain() {
	defer n.wg.Done()
	for j := range n.queue {
		n.deliver(j)
	}
}

func (n *Notifier) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	ctx = requestcontext.WithRequestID(ctx, j.requestID)
	log := n.logger.With("kind", j.kind, "request_id", j.requestID)

	to, err := n.resolve(ctx, j)
	if err != nil {
		log.ErrorContext(ctx, "failed to resolve email recipients", "error", err)
		n.failed(j.kind)
		return
	}
	if len(to) == 0 {
		log.DebugContext(ctx, "no recipients for notification")
		return
	}
	for _, r := range to {
		v := j.view
		if r.Name != "" {
			v.RecipientName = r.Name
		}
		html, err := render(j.template, v)
		if err != nil {
			log.ErrorContext(ctx, "failed to render email", "error", err)
			n.failed(j.kind)
			return
		}
		if err := n.mailer.Send(ctx, Message{To: r.Email, Subject: j.subject, HTML: html}); err != nil {
			log.ErrorContext(ctx, "failed to send email", "to", r.Email, "error", err)
			n.failed(j.kind)
			continue
		}
		if n.metrics != nil {
			n.metrics.IncrementSent(j.kind)
		}
	}
}

func (n *Notifier) resolve(ctx context.Context, j job) ([]tenancy.Recipient, error) {
	seen := map[string]bool{}
	var out []tenancy.Recipient
	add := func(r tenancy.Recipient) {
		addr := email.Normalize(r.Email)
		if !email.Valid(addr) || seen[addr] {
			return
		}
		seen[addr] = true
		r.Email = addr
		out = append(out, r)
	}
	for _, addr := range j.addresses {
		add(tenancy.Recipient{Email: addr, Name: j.view.RecipientName})
	}
	if j.min != "" {
		users, err := n.recipients.ListRecipients(ctx, j.companyID, j.min)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			add(u)
		}
	}
	return out, nil
}

func (n *Notifier) failed(kind string) {
	if n.metrics != nil {
		n.metrics.IncrementFailed(kind)
	}
}
