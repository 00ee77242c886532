package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

// ContractService reads generated contracts. Editing is handled elsewhere.
type ContractService interface {
	Get(dbc dbctx.Context, id uuid.UUID) (*contracts.Contract, error)
}

type contractService struct {
	log  *logger.Logger
	repo repos.ContractRepo
}

func NewContractService(baseLog *logger.Logger, repo repos.ContractRepo) ContractService {
	return &contractService{log: baseLog.With("service", "ContractService"), repo: repo}
}

func (s *contractService) Get(dbc dbctx.Context, id uuid.UUID) (*contracts.Contract, error) {
	owner, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.OwnerUserID != owner {
		return nil, ErrContractNotFound
	}
	return c, nil
}
