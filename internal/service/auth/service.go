package auth

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const bcryptCost = 12

type Service struct {
	repos        repository.Repositories
	patients     *patient.Service
	jwtSvc       auth.JWTService
	hasher       security.PasscodeHasher
	passcodeHash string
	logger       *logger.Logger
}

// NewService authenticates against passcodeHash, a bcrypt hash of the admin passcode.
func NewService(repos repository.Repositories, patients *patient.Service, jwtSvc auth.JWTService,
	passcodeHash string, logger *logger.Logger) *Service {
	return &Service{
		repos:        repos,
		patients:     patients,
		jwtSvc:       jwtSvc,
		hasher:       security.NewBcryptHasher(bcryptCost),
		passcodeHash: passcodeHash,
		logger:       logger,
	}
}

// HashPasscode produces the value expected in auth.admin_passcode_hash.
func HashPasscode(passcode string) (string, error) {
	return security.NewBcryptHasher(bcryptCost).Hash(passcode)
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	principal := model.Principal{Role: req.Role, ID: req.ID}

	switch req.Role {
	case model.RoleAdmin:
		if len(s.passcodeHash) == 0 {
			return nil, errors.Unauthorized("admin login is disabled")
		}
		if err := s.hasher.Compare(s.passcodeHash, req.Passcode); err != nil {
			s.logger.Warn("admin login rejected", "reason", err.Error())
			return nil, errors.Unauthorized("invalid credentials")
		}
		principal.ID = 0
	case model.RolePatient:
		if _, err := s.repos.Patients().Get(ctx, req.ID); err != nil {
			return nil, credentialsErr(err)
		}
	case model.RoleDoctor:
		if _, err := s.repos.Doctors().Get(ctx, req.ID); err != nil {
			return nil, credentialsErr(err)
		}
	default:
		return nil, errors.Validation("unknown role")
	}

	return s.issue(principal)
}

// Register creates a patient record and logs the new patient in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	p, err := s.patients.CreatePatient(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(model.Principal{Role: model.RolePatient, ID: p.ID})
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, errors.Wrap(errors.KindUnauthorized, "invalid token", err)
	}
	return &model.Principal{Role: claims.Role, ID: claims.SubjectID}, nil
}

func (s *Service) issue(principal model.Principal) (*model.TokenResponse, error) {
	token, err := s.jwtSvc.GenerateAccessToken(principal)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to generate token", err)
	}
	s.logger.Info("token issued", "role", principal.Role, "subject_id", principal.ID)
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtSvc.Expiry().Seconds()),
		Role:        principal.Role,
		SubjectID:   principal.ID,
	}, nil
}

func credentialsErr(err error) error {
	if errors.IsKind(err, errors.KindNotFound) {
		return errors.Unauthorized("invalid credentials")
	}
	return err
}
