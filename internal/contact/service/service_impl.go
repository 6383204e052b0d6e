package service

import (
	"context"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/revolutionai/storefront/internal/clock"
	"github.com/revolutionai/storefront/internal/contact/domain"
	"github.com/revolutionai/storefront/internal/validation"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Notifier domain.Notifier `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	notifier domain.Notifier
	validate *validator.Validate
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("contact.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    clk,
		notifier: p.Notifier,
		validate: validator.New(),
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Booking, error) {
	clean := sanitize(req)
	if err := s.check(clean); err != nil {
		return domain.Booking{}, err
	}

	now := s.clock.Now()
	booking := domain.Booking{
		ID:        s.genID.Generate(),
		Reference: ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		FirstName: clean.FirstName,
		LastName:  clean.LastName,
		Email:     clean.Email,
		Phone:     clean.Phone,
		Company:   clean.Company,
		Service:   clean.Service,
		Budget:    clean.Budget,
		Timeline:  clean.Timeline,
		Message:   clean.Message,
		IPAddress: strings.TrimSpace(req.IPAddress),
		UserAgent: strings.TrimSpace(req.UserAgent),
		Status:    domain.StatusNew,
		CreatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &booking); err != nil {
		return domain.Booking{}, err
	}

	s.log.Info("booking received",
		zap.String("reference", booking.Reference),
		zap.String("service", booking.Service),
	)

	if s.notifier != nil {
		s.notifier.NotifyBooking(ctx, booking)
	}

	return booking, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) (domain.ListResponse, error) {
	items, err := s.repo.List(ctx, s.db, page)
	if err != nil {
		return domain.ListResponse{}, err
	}
	bookings, info, err := pagination.Trim(items, page.Limit(), func(b domain.Booking) pagination.Cursor {
		return pagination.Cursor{ID: b.ID.String(), CreatedAt: b.CreatedAt.Format(time.RFC3339)}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return domain.ListResponse{PageInfo: info, Bookings: bookings}, nil
}

func (s *Service) check(req domain.SubmitRequest) error {
	var errs validation.Errors

	if utf8.RuneCountInString(req.FirstName) < 2 {
		errs.Add("firstName", "too_short", "First name must be at least 2 characters long")
	}
	if utf8.RuneCountInString(req.LastName) < 2 {
		errs.Add("lastName", "too_short", "Last name must be at least 2 characters long")
	}
	if s.validate.Var(req.Email, "required,email") != nil {
		errs.Add("email", "invalid", "Please provide a valid email address")
	}
	if req.Phone != "" && !validPhone(req.Phone) {
		errs.Add("phone", "invalid", "Please provide a valid phone number")
	}
	if utf8.RuneCountInString(req.Message) < 10 {
		errs.Add("message", "too_short", "Message must be at least 10 characters long")
	}

	return errs.Err()
}

// validPhone keeps digits and the usual separators, then bounds the length.
func validPhone(phone string) bool {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9', r == '+', r == ' ', r == '(', r == ')', r == '-':
			b.WriteRune(r)
		}
	}
	n := b.Len()
	return n >= 10 && n <= 20
}

func sanitize(req domain.SubmitRequest) domain.SubmitRequest {
	return domain.SubmitRequest{
		FirstName: escape(req.FirstName),
		LastName:  escape(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     escape(req.Phone),
		Company:   escape(req.Company),
		Service:   escape(req.Service),
		Budget:    escape(req.Budget),
		Timeline:  escape(req.Timeline),
		Message:   escape(req.Message),
	}
}

func escape(value string) string {
	return html.EscapeString(strings.TrimSpace(value))
}
