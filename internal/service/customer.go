package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customer-records/internal/cache"
	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/model"
	"github.com/umalmyha/customer-records/internal/repository"
)

// CustomerService is customers use cases
type CustomerService interface {
	// FindByID returns nil customer and nil error when customer doesn't exist
	FindByID(context.Context, string) (*model.Customer, error)
	Create(context.Context, *model.CustomerForm) (*model.Customer, error)
	Update(context.Context, string, *model.CustomerForm) (*model.Customer, error)
	// DeleteByID is idempotent, missing customer is not an error
	DeleteByID(context.Context, string) error
	ListPage(context.Context, int, *model.Cursor) (*model.Page, error)
	Search(context.Context, string) ([]*model.Customer, error)
	Statistics(context.Context) (*model.Statistics, error)
}

// CustomerServiceOption customizes customer service
type CustomerServiceOption func(*customerService)

// WithClock replaces wall clock used for timestamps
func WithClock(now func() time.Time) CustomerServiceOption {
	return func(s *customerService) {
		s.now = now
	}
}

// WithMaxPageSize limits size of listed page
func WithMaxPageSize(size int) CustomerServiceOption {
	return func(s *customerService) {
		s.maxPageSize = size
	}
}

type customerService struct {
	customerRepo  repository.CustomerRepository
	customerCache cache.CustomerCacheRepository
	photoSvc      PhotoService
	logger        logrus.FieldLogger
	now           func() time.Time
	maxPageSize   int
}

// NewCustomerService builds CustomerService
func NewCustomerService(
	customerRepo repository.CustomerRepository,
	customerCache cache.CustomerCacheRepository,
	photoSvc PhotoService,
	logger logrus.FieldLogger,
	opts ...CustomerServiceOption,
) CustomerService {
	s := &customerService{
		customerRepo:  customerRepo,
		customerCache: customerCache,
		photoSvc:      photoSvc,
		logger:        logger.WithField("service", "customer"),
		now:           time.Now,
		maxPageSize:   100,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *customerService) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	c, err := s.customerCache.FindByID(ctx, id)
	if err != nil {
		s.logger.Warnf("failed to read customer %s from cache - %v", id, err)
	}

	if c != nil {
		return c, nil
	}

	c, err = s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewStoreErr("find customer", err)
	}

	if c == nil {
		return nil, nil
	}

	if err := s.customerCache.Create(ctx, c); err != nil {
		s.logger.Warnf("failed to cache customer %s - %v", id, err)
	}
	return c, nil
}

func (s *customerService) Create(ctx context.Context, form *model.CustomerForm) (*model.Customer, error) {
	if err := validateForm(form); err != nil {
		return nil, err
	}

	var photoURL *string
	if form.Photo.Action() == model.PhotoReplace {
		url, err := s.photoSvc.Upload(ctx, form.Photo.Content(), form.Photo.Filename())
		if err != nil {
			return nil, err
		}
		photoURL = &url
	}

	ts := s.now().UnixMilli()
	c := &model.Customer{
		Name:      form.Name,
		Email:     form.Email,
		Phone:     form.Phone,
		Address:   form.Address,
		PhotoURL:  photoURL,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	if err := s.customerRepo.Create(ctx, c); err != nil {
		if photoURL != nil {
			s.photoSvc.Remove(ctx, *photoURL)
		}
		return nil, apperrors.NewStoreErr("create customer", err)
	}
	return c, nil
}

func (s *customerService) Update(ctx context.Context, id string, form *model.CustomerForm) (*model.Customer, error) {
	if err := validateForm(form); err != nil {
		return nil, err
	}

	existing, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewStoreErr("find customer", err)
	}

	if existing == nil {
		return nil, apperrors.NewNotFoundErr(fmt.Sprintf("customer %s doesn't exist", id))
	}

	c := *existing
	c.Name = form.Name
	c.Email = form.Email
	c.Phone = form.Phone
	c.Address = form.Address
	c.UpdatedAt = max(s.now().UnixMilli(), existing.UpdatedAt)

	var superseded *string
	switch form.Photo.Action() {
	case model.PhotoReplace:
		url, err := s.photoSvc.Upload(ctx, form.Photo.Content(), form.Photo.Filename())
		if err != nil {
			return nil, err
		}
		superseded = existing.PhotoURL
		c.PhotoURL = &url
	case model.PhotoClear:
		superseded = existing.PhotoURL
		c.PhotoURL = nil
	case model.PhotoKeep:
	}

	if err := s.customerRepo.Update(ctx, &c); err != nil {
		if form.Photo.Action() == model.PhotoReplace {
			s.photoSvc.Remove(ctx, *c.PhotoURL)
		}

		var notFoundErr *apperrors.NotFoundErr
		if errors.As(err, &notFoundErr) {
			return nil, err
		}
		return nil, apperrors.NewStoreErr("update customer", err)
	}

	if superseded != nil && *superseded != "" {
		s.photoSvc.Remove(ctx, *superseded)
	}

	s.evict(ctx, id, existing.UpdatedAt)
	return &c, nil
}

func (s *customerService) DeleteByID(ctx context.Context, id string) error {
	c, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return apperrors.NewStoreErr("find customer", err)
	}

	if c == nil {
		return nil
	}

	if err := s.customerRepo.DeleteByID(ctx, id); err != nil {
		return apperrors.NewStoreErr("delete customer", err)
	}

	if c.HasPhoto() {
		s.photoSvc.Remove(ctx, *c.PhotoURL)
	}

	// deleted customer must never be cached again
	s.evict(ctx, id, math.MaxInt64)
	return nil
}

func (s *customerService) ListPage(ctx context.Context, size int, after *model.Cursor) (*model.Page, error) {
	if size <= 0 || size > s.maxPageSize {
		return nil, apperrors.NewValidationErr("pageSize", fmt.Sprintf("page size must be between 1 and %d", s.maxPageSize))
	}

	customers, err := s.customerRepo.FindPage(ctx, size, after)
	if err != nil {
		return nil, apperrors.NewStoreErr("list customers", err)
	}
	return model.NewPage(customers, size), nil
}

func (s *customerService) Search(ctx context.Context, term string) ([]*model.Customer, error) {
	customers, err := s.customerRepo.FindByNamePrefix(ctx, term)
	if err != nil {
		return nil, apperrors.NewStoreErr("search customers", err)
	}
	return customers, nil
}

func (s *customerService) Statistics(ctx context.Context) (*model.Statistics, error) {
	stats, err := s.customerRepo.Statistics(ctx, s.now().UnixMilli())
	if err != nil {
		return nil, apperrors.NewStoreErr("collect statistics", err)
	}
	return stats, nil
}

func (s *customerService) evict(ctx context.Context, id string, staleUpTo int64) {
	if err := s.customerCache.Evict(ctx, id, staleUpTo); err != nil {
		s.logger.Warnf("failed to evict customer %s from cache - %v", id, err)
	}
}

func validateForm(form *model.CustomerForm) error {
	if target, msg := form.Violation(); target != "" {
		return apperrors.NewValidationErr(target, msg)
	}
	return nil
}
