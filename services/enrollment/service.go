package enrollment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/services/business"
	"loyaltyhub/services/notification"
	"loyaltyhub/services/points"
)

// Notifier decouples enrollment from notification delivery. Failures inside
// the notifier never affect the enrollment outcome.
type Notifier interface {
	Notify(ctx context.Context, recipientID, kind string, payload map[string]any)
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	notifier Notifier

	requests repository.Repository[EnrollmentRequest]
	cards    repository.Repository[points.LoyaltyCard]
	programs repository.Repository[business.Program]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Notifier Notifier `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		notifier: p.Notifier,

		requests: repository.ProvideStore[EnrollmentRequest](p.DB),
		cards:    repository.ProvideStore[points.LoyaltyCard](p.DB),
		programs: repository.ProvideStore[business.Program](p.DB),
	}
}

// Request invites a customer into a program. Re-requesting while a pending
// invite exists returns the existing invite instead of stacking duplicates.
func (s *Service) Request(ctx context.Context, businessID, programID, customerID string) (*EnrollmentRequest, error) {
	program, err := s.programs.FindOne(ctx, &business.Program{ID: programID})
	if err != nil {
		return nil, errutil.Internal("failed to query program", err)
	}
	if program == nil || !program.Active {
		return nil, errutil.NotFound("program not found", nil)
	}
	if program.BusinessID != businessID {
		return nil, errutil.Forbidden("program belongs to another business", nil)
	}

	existingCard, err := s.cards.FindOne(ctx, &points.LoyaltyCard{CustomerID: customerID, ProgramID: programID})
	if err != nil {
		return nil, errutil.Internal("failed to query loyalty card", err)
	}
	if existingCard != nil {
		return nil, errutil.Conflict("customer already enrolled in program", nil)
	}

	pending, err := s.requests.FindOne(ctx, &EnrollmentRequest{
		ProgramID:  programID,
		CustomerID: customerID,
		Status:     StatusPending,
	})
	if err != nil {
		return nil, errutil.Internal("failed to query enrollment requests", err)
	}
	if pending != nil {
		return pending, nil
	}

	req := &EnrollmentRequest{
		ID:         s.node.Generate().String(),
		BusinessID: businessID,
		ProgramID:  programID,
		CustomerID: customerID,
		Status:     StatusPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, errutil.Internal("failed to create enrollment request", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, customerID, notification.KindEnrollmentInvite, map[string]any{
			"request_id":  req.ID,
			"business_id": businessID,
			"program_id":  programID,
		})
	}

	return req, nil
}

type RespondResult struct {
	Request *EnrollmentRequest
	Card    *points.LoyaltyCard
}

// Respond accepts or declines a pending invite. The transition out of
// pending happens exactly once; a second response is rejected even when two
// arrive concurrently, via the status-guarded UPDATE.
func (s *Service) Respond(ctx context.Context, customerID, requestID string, accept bool) (*RespondResult, error) {
	req, err := s.requests.FindOne(ctx, &EnrollmentRequest{ID: requestID})
	if err != nil {
		return nil, errutil.Internal("failed to query enrollment request", err)
	}
	if req == nil {
		return nil, errutil.NotFound("enrollment request not found", nil)
	}
	if req.CustomerID != customerID {
		return nil, errutil.Forbidden("enrollment request belongs to another customer", nil)
	}
	if req.Status != StatusPending {
		return nil, errutil.Conflict("enrollment request already processed", nil)
	}

	next := StatusDeclined
	if accept {
		next = StatusAccepted
	}

	var card *points.LoyaltyCard
	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&EnrollmentRequest{}).
			Where("id = ? AND status = ?", req.ID, StatusPending).
			Updates(map[string]any{
				"status":       next,
				"action_taken": &now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("enrollment request already processed", nil)
		}

		if accept {
			var enrollErr error
			card, _, enrollErr = s.enrollTx(ctx, tx, req.CustomerID, req.ProgramID, req.BusinessID)
			return enrollErr
		}
		return nil
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, errutil.Internal("failed to respond to enrollment request", err)
	}

	req.Status = next
	req.ActionTaken = &now

	if s.notifier != nil {
		kind := notification.KindEnrollmentDeclined
		if accept {
			kind = notification.KindEnrollmentAccepted
		}
		s.notifier.Notify(ctx, req.BusinessID, kind, map[string]any{
			"request_id":  req.ID,
			"customer_id": req.CustomerID,
			"program_id":  req.ProgramID,
		})
	}

	return &RespondResult{Request: req, Card: card}, nil
}

// Enroll creates the loyalty card for a (customer, program) pair. The unique
// index on the pair is the source of truth: a duplicate-key failure means
// another writer won the race, and the existing card is returned as an
// idempotent no-op.
func (s *Service) Enroll(ctx context.Context, customerID, programID, businessID string) (*points.LoyaltyCard, bool, error) {
	var card *points.LoyaltyCard
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		card, created, err = s.enrollTx(ctx, tx, customerID, programID, businessID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return card, created, nil
}

func (s *Service) enrollTx(ctx context.Context, tx *gorm.DB, customerID, programID, businessID string) (*points.LoyaltyCard, bool, error) {
	cards := s.cards.WithTrx(tx)

	existing, err := cards.FindOne(ctx, &points.LoyaltyCard{CustomerID: customerID, ProgramID: programID})
	if err != nil {
		return nil, false, errutil.Internal("failed to query loyalty card", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	card := &points.LoyaltyCard{
		ID:         s.node.Generate().String(),
		CustomerID: customerID,
		ProgramID:  programID,
		BusinessID: businessID,
		CardNumber: s.node.Generate().Base36(),
	}

	// On postgres a failed INSERT poisons the whole transaction, so the
	// recovery read after a lost race needs a clean savepoint to return to.
	if err := tx.SavePoint("enroll_card").Error; err != nil {
		return nil, false, errutil.Internal("failed to set enrollment savepoint", err)
	}
	if err := cards.Create(ctx, card); err != nil {
		if isUniqueViolation(err) {
			if rbErr := tx.RollbackTo("enroll_card").Error; rbErr != nil {
				return nil, false, errutil.Internal("failed to recover from duplicate enrollment", rbErr)
			}
			zap.L().Info("enrollment lost creation race, reusing existing card",
				zap.String("customer_id", customerID),
				zap.String("program_id", programID),
			)
			existing, ferr := cards.FindOne(ctx, &points.LoyaltyCard{CustomerID: customerID, ProgramID: programID})
			if ferr != nil || existing == nil {
				return nil, false, errutil.Internal("failed to load card after duplicate enrollment", ferr)
			}
			return existing, false, nil
		}
		return nil, false, errutil.Internal("failed to create loyalty card", err)
	}

	return card, true, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
