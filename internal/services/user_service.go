package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/models"
)

type UserService struct {
	db core.DbClient
}

func NewUserService(db core.DbClient) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(ctx context.Context, u *models.User) error {
	if u == nil || u.Email == "" || u.PasswordHash == "" {
		return errors.New("invalid user payload")
	}
	return s.db.CreateUser(ctx, u)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetUserByEmail(ctx, email)
}

// CreateTeam provisions a team with a fresh storage uuid. The uuid names
// the team's directory and vector namespace and never changes afterwards;
// only the alias is rename-safe.
func (s *UserService) CreateTeam(ctx context.Context, companyID int64, alias string) (*models.Team, error) {
	team := &models.Team{
		CompanyID:   companyID,
		Alias:       alias,
		StorageUUID: uuid.NewString(),
	}
	if err := s.db.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	return team, nil
}

func (s *UserService) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	return s.db.GetTeamByID(ctx, id)
}

func (s *UserService) ListTeams(ctx context.Context, companyID int64) ([]models.Team, error) {
	return s.db.ListTeamsByCompany(ctx, companyID)
}
