package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"loyaltyhub/pkg/auth"
	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/services/ratelimit"
)

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	cfg        *config.Config
	dispatcher *Dispatcher
	auditor    *Auditor
	directory  BusinessDirectory
	limiter    *ratelimit.Limiter

	tokens repository.Repository[ScanToken]

	status singleflight.Group
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Config     *config.Config
	Dispatcher *Dispatcher
	Auditor    *Auditor
	Directory  BusinessDirectory
	Limiters   ratelimit.Limiters
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		cfg:        p.Config,
		dispatcher: p.Dispatcher,
		auditor:    p.Auditor,
		directory:  p.Directory,
		limiter:    p.Limiters.Scan,

		tokens: repository.ProvideStore[ScanToken](p.DB),
	}
}

type GenerateParams struct {
	BusinessID string
	CustomerID string
	Kind       Kind
	CardID     string
	ProgramID  string
	CardNumber string
	Code       string
}

// Generate mints and persists a scan payload. The stored raw text is the
// canonical encoding, so validate/process later decode exactly what was
// issued.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (*ScanToken, error) {
	if _, err := s.directory.GetBusiness(ctx, params.BusinessID); err != nil {
		return nil, err
	}

	payload := &Payload{
		Kind:       params.Kind,
		CustomerID: params.CustomerID,
		CardID:     params.CardID,
		ProgramID:  params.ProgramID,
		BusinessID: params.BusinessID,
		CardNumber: params.CardNumber,
		Code:       params.Code,
	}
	if params.Kind == KindCustomer || params.Kind == KindLoyaltyCard {
		if _, err := s.directory.GetCustomer(ctx, params.CustomerID); err != nil {
			return nil, err
		}
	}

	raw, err := Encode(payload)
	if err != nil {
		return nil, errutil.BadRequest("payload fields do not form a valid code", err)
	}

	token := &ScanToken{
		ID:         s.node.Generate().String(),
		BusinessID: params.BusinessID,
		CustomerID: params.CustomerID,
		Kind:       params.Kind,
		RawText:    raw,
		Active:     true,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, errutil.Internal("failed to persist scan token", err)
	}

	return token, nil
}

type ValidateResult struct {
	Valid   bool     `json:"valid"`
	Payload *Payload `json:"payload,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Validate decodes and looks up a payload without mutating anything.
func (s *Service) Validate(ctx context.Context, raw string) (*ValidateResult, error) {
	payload, err := Decode(raw)
	if err != nil {
		return nil, errutil.BadRequest("invalid payload format", err)
	}
	if payload.Kind == KindUnknown {
		return &ValidateResult{Valid: false, Payload: payload, Message: "unrecognized code"}, nil
	}

	token, err := s.tokens.FindOne(ctx, &ScanToken{RawText: raw})
	if err != nil {
		return nil, errutil.Internal("failed to query scan token", err)
	}
	if token == nil {
		// manually entered promo codes are issued outside the token store
		if payload.Kind == KindPromoCode {
			return &ValidateResult{Valid: true, Payload: payload}, nil
		}
		return nil, errutil.NotFound("scan payload not recognized", nil)
	}
	if !token.Active {
		return &ValidateResult{Valid: false, Payload: payload, Message: "code revoked"}, nil
	}

	return &ValidateResult{Valid: true, Payload: payload}, nil
}

// Process runs the full pipeline for one raw text: rate limit, decode,
// revocation check, dispatch. Failed stages are audited with the matching
// outcome before the error surfaces.
func (s *Service) Process(ctx context.Context, actor auth.Identity, raw string) (*ScanResult, error) {
	allowed, _, resetAt, err := s.limiter.Allow(ctx, actorKeyFor(actor))
	if err != nil {
		zap.L().Error("scan limiter failed", zap.Error(err))
		return nil, errutil.Internal("rate limiter unavailable", err)
	}
	if !allowed {
		s.auditor.Record(ctx, AttemptRecord{
			RawText:    raw,
			ActorID:    actor.ActorID,
			BusinessID: actor.BusinessID,
			Outcome:    OutcomeRateLimited,
			Message:    "scan rate exceeded",
		})
		return nil, errutil.TooManyRequest(
			fmt.Sprintf("scan rate exceeded, retry after %s", time.Until(resetAt).Round(time.Second)), nil)
	}

	payload, err := Decode(raw)
	if err != nil {
		s.auditor.Record(ctx, AttemptRecord{
			RawText:    raw,
			ActorID:    actor.ActorID,
			BusinessID: actor.BusinessID,
			Outcome:    OutcomeInvalidFormat,
			Message:    "invalid payload format",
		})
		return nil, errutil.BadRequest("invalid payload format", err)
	}

	dctx := DispatchContext{
		Actor:       actor,
		ReferenceID: s.node.Generate().String(),
	}

	if payload.Kind != KindUnknown && payload.Kind != KindPromoCode {
		token, terr := s.tokens.FindOne(ctx, &ScanToken{RawText: raw})
		if terr != nil {
			return nil, errutil.Internal("failed to query scan token", terr)
		}
		if token != nil {
			dctx.TokenID = token.ID
			if !token.Active {
				s.auditor.Record(ctx, AttemptRecord{
					RawText:    raw,
					Payload:    payload,
					ActorID:    actor.ActorID,
					BusinessID: actor.BusinessID,
					TokenID:    token.ID,
					Outcome:    OutcomeProcessingError,
					Message:    "code revoked",
				})
				return nil, errutil.Forbidden("code revoked", nil)
			}
		}
	}

	return s.dispatcher.Dispatch(ctx, dctx, raw, payload)
}

// Revoke deactivates an issued payload. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, businessID, tokenID string) error {
	token, err := s.tokens.FindOne(ctx, &ScanToken{ID: tokenID})
	if err != nil {
		return errutil.Internal("failed to query scan token", err)
	}
	if token == nil {
		return errutil.NotFound("scan token not found", nil)
	}
	if token.BusinessID != businessID {
		return errutil.Forbidden("scan token belongs to another business", nil)
	}
	if !token.Active {
		return nil
	}

	return s.tokens.Update(ctx, token.ID, map[string]any{
		"active":     false,
		"updated_at": time.Now(),
	})
}

type StatusResult struct {
	Token    *ScanToken     `json:"token"`
	Attempts []*ScanAttempt `json:"attempts"`
}

// Status reports a token plus its recent attempt history. Lookups for the
// same token are collapsed through singleflight since status polling comes
// in bursts from scanning clients.
func (s *Service) Status(ctx context.Context, tokenID string) (*StatusResult, error) {
	v, err, _ := s.status.Do(tokenID, func() (any, error) {
		token, err := s.tokens.FindOne(ctx, &ScanToken{ID: tokenID})
		if err != nil {
			return nil, errutil.Internal("failed to query scan token", err)
		}
		if token == nil {
			return nil, errutil.NotFound("scan token not found", nil)
		}

		attempts, err := s.auditor.Recent(ctx, tokenID, 10)
		if err != nil {
			return nil, errutil.Internal("failed to load scan attempts", err)
		}

		return &StatusResult{Token: token, Attempts: attempts}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StatusResult), nil
}

// NewSession opens a debounced intake for one scanning client. Frames go in
// through Submit; results come out on Results in acceptance order.
func (s *Service) NewSession(actor auth.Identity) *Session {
	session := &Session{
		results: make(chan *ScanResult, s.cfg.Scanner.QueueSize),
	}
	session.deb = NewDebouncer(DebouncerConfig{
		Window:      s.cfg.Scanner.DebounceWindow,
		MinInterval: s.cfg.Scanner.MinInterval,
		QueueSize:   s.cfg.Scanner.QueueSize,
	}, func(ctx context.Context, raw string) {
		result, err := s.Process(ctx, actor, raw)
		if result == nil {
			result = &ScanResult{
				Timestamp: time.Now(),
				Success:   false,
				Message:   messageFor(err),
			}
		}
		select {
		case session.results <- result:
		default:
			zap.L().Warn("scan session result dropped, consumer too slow")
		}
	})
	return session
}

type Session struct {
	deb      *Debouncer
	results  chan *ScanResult
	stopOnce sync.Once
}

func (s *Session) Submit(raw string) bool {
	return s.deb.Submit(raw)
}

func (s *Session) Results() <-chan *ScanResult {
	return s.results
}

// Stop drops pending frames, lets the in-flight dispatch finish, then
// closes the result stream. Safe to call more than once.
func (s *Session) Stop() {
	s.deb.Stop()
	s.stopOnce.Do(func() {
		close(s.results)
	})
}

func actorKeyFor(actor auth.Identity) string {
	if actor.ActorID != "" {
		return actor.ActorID
	}
	return "ip"
}
