package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/http/response"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/services"
)

type ContractHandler struct {
	contracts services.ContractService
}

func NewContractHandler(contracts services.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// GET /api/contracts/:id
func (h *ContractHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_contract_id", err)
		return
	}
	contract, err := h.contracts.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"contract": contract})
}
