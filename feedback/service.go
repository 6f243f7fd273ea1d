/*
Package feedback accepts contact-form submissions and mails them to the
maintainers.

PURPOSE:
  The form posts {name, email, message}. A submission is validated, stored,
  and mailed. If mailing fails the row stays pending and the Dispatcher
  retries it, so an SMTP outage never loses a message.

FLOW:
  Submit -> validate -> store.SaveFeedback -> Deliver
                                              |-- ok:   MarkDelivered
                                              `-- fail: RecordFailure (Dispatcher retries)

SEE ALSO:
  - store/sqlite: Persistence
  - mailer.go:    SMTP and no-op mailers
  - dispatcher.go: Background redelivery
*/
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/paycalc/store/sqlite"
)

// ErrInvalidSubmission is the sentinel behind every ValidationError.
var ErrInvalidSubmission = errors.New("invalid feedback submission")

// Submission is the contact-form payload.
type Submission struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject,omitempty" validate:"max=200"`
	Message string `json:"message" validate:"required,min=5,max=5000"`
}

func (s Submission) normalized() Submission {
	return Submission{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Subject: strings.TrimSpace(s.Subject),
		Message: strings.TrimSpace(s.Message),
	}
}

// FieldIssue describes one rejected field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a submission.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + ": " + is.Message
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSubmission, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSubmission
}

// Store is the persistence the service needs. *sqlite.Store satisfies it.
type Store interface {
	SaveFeedback(ctx context.Context, rec sqlite.FeedbackRecord) error
	ListPending(ctx context.Context, maxAttempts, limit int) ([]sqlite.FeedbackRecord, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, cause error) error
}

// Config addresses outgoing feedback mail.
type Config struct {
	From string
	To   string
}

// Receipt is returned for an accepted submission.
type Receipt struct {
	ID        string
	Delivered bool
}

// Service validates, stores and mails feedback.
type Service struct {
	store    Store
	mailer   Mailer
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires a feedback service. A nil logger uses slog.Default.
func NewService(store Store, mailer Mailer, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mailer == nil {
		mailer = noopMailer{}
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Service{
		store:    store,
		mailer:   mailer,
		cfg:      cfg,
		validate: v,
		logger:   logger.With("component", "feedback"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Validate checks a submission without storing it.
func (s *Service) Validate(sub Submission) error {
	err := s.validate.Struct(sub.normalized())
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Issues = append(verr.Issues, FieldIssue{Field: fe.Field(), Message: describe(fe)})
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

// Submit validates and stores a submission, then tries to mail it once.
// A mail failure does not fail the call; the row stays pending.
func (s *Service) Submit(ctx context.Context, sub Submission, remoteAddr string) (Receipt, error) {
	if err := s.Validate(sub); err != nil {
		return Receipt{}, err
	}
	sub = sub.normalized()

	rec := sqlite.FeedbackRecord{
		ID:         s.newID(),
		Name:       sub.Name,
		Email:      sub.Email,
		Subject:    sub.Subject,
		Message:    sub.Message,
		RemoteAddr: remoteAddr,
		CreatedAt:  s.now(),
	}
	if err := s.store.SaveFeedback(ctx, rec); err != nil {
		return Receipt{}, fmt.Errorf("failed to store feedback: %w", err)
	}

	err := s.Deliver(ctx, rec)
	if err != nil {
		s.logger.Warn("feedback delivery deferred", "id", rec.ID, "error", err)
	}
	return Receipt{ID: rec.ID, Delivered: err == nil}, nil
}

// Deliver mails one stored submission and records the outcome.
func (s *Service) Deliver(ctx context.Context, rec sqlite.FeedbackRecord) error {
	sendErr := s.mailer.Send(ctx, s.cfg.From, s.cfg.To, subjectLine(rec), messageBody(rec))
	if sendErr != nil {
		if err := s.store.RecordFailure(ctx, rec.ID, sendErr); err != nil {
			s.logger.Error("failed to record delivery failure", "id", rec.ID, "error", err)
		}
		return sendErr
	}
	if err := s.store.MarkDelivered(ctx, rec.ID, s.now()); err != nil {
		return fmt.Errorf("delivered but not marked: %w", err)
	}
	return nil
}

func subjectLine(rec sqlite.FeedbackRecord) string {
	if rec.Subject != "" {
		return "[Pay Calculator] " + rec.Subject
	}
	return "[Pay Calculator] Feedback from " + rec.Name
}

func messageBody(rec sqlite.FeedbackRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "Email: %s\n", rec.Email)
	fmt.Fprintf(&b, "Submitted: %s\n", rec.CreatedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Reference: %s\n\n", rec.ID)
	b.WriteString(rec.Message)
	b.WriteString("\n")
	return b.String()
}
