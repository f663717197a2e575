package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"krtbank/internal/account/metrics"
	"krtbank/internal/account/models"
	dErrors "krtbank/pkg/domain-errors"
	"krtbank/pkg/platform/sentinel"
	"krtbank/pkg/result"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id models.AccountID) (*models.Account, error)
	FindByCpf(ctx context.Context, cpf models.Cpf) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id models.AccountID) error
}

// Cache is the read-model cache in front of the repository, keyed by the
// account id string.
type Cache interface {
	Get(ctx context.Context, key string) (*models.AccountView, bool)
	Set(ctx context.Context, key string, view *models.AccountView) error
	Delete(ctx context.Context, key string) error
}

// DeletePolicy selects what Delete does to the stored account.
type DeletePolicy int

const (
	// HardDelete removes the account from the repository.
	HardDelete DeletePolicy = iota
	// SoftDelete deactivates the account and keeps it stored.
	SoftDelete
)

// Failure messages carried by Results.
const (
	MsgDuplicateCpf    = "duplicate identifier"
	MsgAccountNotFound = "account not found"
	MsgInvalidID       = "invalid account id"
)

// Service implements the account use cases. Expected outcomes are Results;
// infrastructure failures are returned as errors with CodeInternal.
//
// Reads use cache-aside without locking: two readers on a cold key may both
// load and both write the cache. The values are equivalent so the last write
// wins.
type Service struct {
	repo         Repository
	cache        Cache
	logger       *slog.Logger
	metrics      *metrics.Metrics
	deletePolicy DeletePolicy
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDeletePolicy(p DeletePolicy) Option {
	return func(s *Service) {
		s.deletePolicy = p
	}
}

func New(repo Repository, cache Cache, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("account repository is required")
	}
	if cache == nil {
		return nil, errors.New("account cache is required")
	}
	s := &Service{
		repo:   repo,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create opens an account. The cache is populated lazily on first read.
func (s *Service) Create(ctx context.Context, req models.CreateAccountRequest) (result.Result[models.AccountView], error) {
	account, err := models.NewAccount(req.HolderName, req.Cpf)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return result.Fail[models.AccountView](http.StatusBadRequest, err.Error()), nil
		}
		return result.Result[models.AccountView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build account")
	}

	_, err = s.repo.FindByCpf(ctx, account.Cpf())
	switch {
	case err == nil:
		return result.Fail[models.AccountView](http.StatusUnprocessableEntity, MsgDuplicateCpf), nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return result.Result[models.AccountView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check identifier")
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return result.Fail[models.AccountView](http.StatusUnprocessableEntity, MsgDuplicateCpf), nil
		}
		return result.Result[models.AccountView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.metrics.IncAccountsCreated()
	s.logger.InfoContext(ctx, "account created", "account_id", account.ID().String())
	view := models.NewAccountView(account)
	return result.Ok(http.StatusCreated, &view), nil
}

// GetByID serves the account view from the cache, falling back to the
// repository and caching the projection before returning.
func (s *Service) GetByID(ctx context.Context, rawID string) (result.Result[models.AccountView], error) {
	id, err := models.ParseAccountID(rawID)
	if err != nil {
		return result.Fail[models.AccountView](http.StatusBadRequest, MsgInvalidID), nil
	}
	key := id.String()

	if cached, ok := s.cache.Get(ctx, key); ok {
		s.metrics.IncCacheHit()
		return result.Ok(http.StatusOK, cached), nil
	}
	s.metrics.IncCacheMiss()

	account, res, err := s.load(ctx, id)
	if account == nil {
		return res, err
	}

	view := models.NewAccountView(account)
	if err := s.cache.Set(ctx, key, &view); err != nil {
		s.logger.WarnContext(ctx, "account cache write failed", "account_id", key, "error", err)
	}
	return result.Ok(http.StatusOK, &view), nil
}

// Update applies a partial update: a nil name or flag leaves that attribute
// untouched. The cache entry is evicted after the write.
func (s *Service) Update(ctx context.Context, rawID string, req models.UpdateAccountRequest) (result.Result[models.AccountView], error) {
	id, err := models.ParseAccountID(rawID)
	if err != nil {
		return result.Fail[models.AccountView](http.StatusBadRequest, MsgInvalidID), nil
	}

	account, res, err := s.load(ctx, id)
	if account == nil {
		return res, err
	}

	if req.HolderName != nil {
		if err := account.Rename(*req.HolderName); err != nil {
			return result.Fail[models.AccountView](http.StatusBadRequest, err.Error()), nil
		}
	}
	if req.Active != nil {
		account.SetActive(*req.Active)
	}

	if err := s.repo.Update(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return result.Fail[models.AccountView](http.StatusNotFound, MsgAccountNotFound), nil
		}
		return result.Result[models.AccountView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
	}
	s.invalidate(ctx, id)

	view := models.NewAccountView(account)
	return result.Ok(http.StatusOK, &view), nil
}

// Delete removes or deactivates the account according to the delete policy,
// then evicts the cache entry.
func (s *Service) Delete(ctx context.Context, rawID string) (result.Result[models.AccountView], error) {
	id, err := models.ParseAccountID(rawID)
	if err != nil {
		return result.Fail[models.AccountView](http.StatusBadRequest, MsgInvalidID), nil
	}

	account, res, err := s.load(ctx, id)
	if account == nil {
		return res, err
	}

	switch s.deletePolicy {
	case SoftDelete:
		account.Deactivate()
		err = s.repo.Update(ctx, account)
	default:
		err = s.repo.Delete(ctx, id)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return result.Fail[models.AccountView](http.StatusNotFound, MsgAccountNotFound), nil
		}
		return result.Result[models.AccountView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete account")
	}
	s.invalidate(ctx, id)

	s.logger.InfoContext(ctx, "account deleted", "account_id", id.String(), "soft", s.deletePolicy == SoftDelete)
	return result.Ok[models.AccountView](http.StatusOK, nil), nil
}

// load returns the account, or a nil account with the Result or error the
// caller should return as is.
func (s *Service) load(ctx context.Context, id models.AccountID) (*models.Account, result.Result[models.AccountView], error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, result.Fail[models.AccountView](http.StatusNotFound, MsgAccountNotFound), nil
		}
		return nil, result.Result[models.AccountView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, result.Result[models.AccountView]{}, nil
}

func (s *Service) invalidate(ctx context.Context, id models.AccountID) {
	if err := s.cache.Delete(ctx, id.String()); err != nil {
		s.logger.WarnContext(ctx, "account cache eviction failed", "account_id", id.String(), "error", err)
	}
}
