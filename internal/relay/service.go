package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxTypeLength      = 64
	MaxSourceLength    = 64
	MaxRecipientLength = 256
	ListLimit          = 100
	UnknownRecipient   = "unknown"
)

type Service struct {
	repo       Repository
	dispatcher *Dispatcher
	logger     *slog.Logger
	nowFn      func() time.Time
}

func NewService(repo Repository, dispatcher *Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(logger)
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		nowFn:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// AcceptInput is the body of POST /notifications. Optional fields are nil
// when absent from the request.
type AcceptInput struct {
	Type            string
	Channel         *string
	Recipient       *string
	Payload         json.RawMessage
	Source          string
	OverwriteStatus *string
}

type Accepted struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

type ListInput struct {
	Type      string
	Recipient string
	Status    string
}

// Accept validates and records a notification, then dispatches it
// synchronously. Dispatch is simulated and does not change the stored status.
func (s *Service) Accept(ctx context.Context, in AcceptInput) (*Accepted, error) {
	n, payload, err := validateAccept(in)
	if err != nil {
		return nil, err
	}

	if n.Recipient == "" {
		n.Recipient = firstNonEmpty(
			recipientFrom(payload["patientId"]),
			recipientFrom(payload["providerId"]),
			UnknownRecipient,
		)
	}

	now := s.nowFn()
	n.ID = uuid.NewString()
	n.CreatedAt = now
	n.UpdatedAt = now

	created, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if res := s.dispatcher.Dispatch(ctx, *created); !res.Success {
		s.logger.Warn("notification dispatch failed", "notification_id", created.ID, "error", res.Error)
	}

	return &Accepted{ID: created.ID, Status: created.Status}, nil
}

func (s *Service) GetNotification(ctx context.Context, id string) (*Notification, error) {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns up to ListLimit matches, newest first. The
// status filter is case-insensitive.
func (s *Service) ListNotifications(ctx context.Context, in ListInput) ([]Notification, error) {
	filter := Filter{Type: in.Type, Recipient: in.Recipient}
	if in.Status != "" {
		filter.Status = Status(strings.ToUpper(strings.TrimSpace(in.Status)))
	}

	list, err := s.repo.ListNotifications(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	// newest inserted first among equal timestamps
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if len(list) > ListLimit {
		list = list[:ListLimit]
	}
	return list, nil
}

func validateAccept(in AcceptInput) (Notification, map[string]any, error) {
	var (
		details []string
		n       Notification
	)

	n.Type = strings.TrimSpace(in.Type)
	details = appendRequired(details, "type", n.Type, MaxTypeLength)

	n.Channel = ChannelEmail
	if in.Channel != nil {
		raw := strings.ToUpper(strings.TrimSpace(*in.Channel))
		switch {
		case raw == "":
			details = append(details, `"channel" is not allowed to be empty`)
		case !Channel(raw).Valid():
			details = append(details, `"channel" must be one of [EMAIL, SMS, PUSH]`)
		default:
			n.Channel = Channel(raw)
		}
	}

	if in.Recipient != nil {
		n.Recipient = strings.TrimSpace(*in.Recipient)
		switch {
		case n.Recipient == "":
			details = append(details, `"recipient" is not allowed to be empty`)
		case utf8.RuneCountInString(n.Recipient) > MaxRecipientLength:
			details = append(details, tooLong("recipient", MaxRecipientLength))
		}
	}

	var payload map[string]any
	trimmed := bytes.TrimSpace(in.Payload)
	switch {
	case len(trimmed) == 0:
		details = append(details, `"payload" is required`)
	case trimmed[0] != '{' || json.Unmarshal(trimmed, &payload) != nil:
		details = append(details, `"payload" must be of type object`)
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err == nil {
			n.Payload = compact.Bytes()
		} else {
			n.Payload = append(json.RawMessage(nil), trimmed...)
		}
	}

	n.Source = strings.TrimSpace(in.Source)
	details = appendRequired(details, "source", n.Source, MaxSourceLength)

	n.Status = StatusSent
	if in.OverwriteStatus != nil {
		raw := strings.ToUpper(strings.TrimSpace(*in.OverwriteStatus))
		switch {
		case raw == "":
			details = append(details, `"overwriteStatus" is not allowed to be empty`)
		case !Status(raw).Valid():
			details = append(details, `"overwriteStatus" must be one of [QUEUED, SENT, FAILED]`)
		default:
			n.Status = Status(raw)
		}
	}

	if len(details) > 0 {
		return Notification{}, nil, &ValidationError{Details: details}
	}
	return n, payload, nil
}

func appendRequired(details []string, field, value string, limit int) []string {
	switch {
	case value == "":
		return append(details, fmt.Sprintf("%q is required", field))
	case utf8.RuneCountInString(value) > limit:
		return append(details, tooLong(field, limit))
	}
	return details
}

func tooLong(field string, limit int) string {
	return fmt.Sprintf("%q length must be less than or equal to %d characters long", field, limit)
}

// recipientFrom renders a payload field as a recipient. Empty strings, zero,
// false and objects yield "".
func recipientFrom(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t != 0 {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
