package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voltex/riskflow/internal/approval"
	"github.com/voltex/riskflow/internal/risk"
	"github.com/voltex/riskflow/pkg/errors"
	"github.com/voltex/riskflow/pkg/models"
)

// tradeRequest is the wire form of a trade submission.
type tradeRequest struct {
	Type      string          `json:"type" binding:"required"`
	Direction string          `json:"direction" binding:"required"`
	Volume    decimal.Decimal `json:"volume"`
	Price     decimal.Decimal `json:"price"`
	Period    string          `json:"period"`

	Contract  *models.ContractDetails  `json:"contract,omitempty"`
	Ancillary *models.AncillaryDetails `json:"ancillary,omitempty"`
	Green     *models.GreenDetails     `json:"green,omitempty"`
}

// contextRequest is the read-only reference data for risk checks,
// supplied by the caller's market-data and credit services.
type contextRequest struct {
	UsedCredit  decimal.Decimal `json:"used_credit"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	MarketPrice decimal.Decimal `json:"market_price"`
	Volatility  decimal.Decimal `json:"volatility"`
}

func (r contextRequest) toCheckContext() risk.CheckContext {
	return risk.CheckContext{
		UsedCredit:  r.UsedCredit,
		CreditLimit: r.CreditLimit,
		MarketPrice: r.MarketPrice,
		Volatility:  r.Volatility,
	}
}

type submitRequest struct {
	Trade   tradeRequest   `json:"trade" binding:"required"`
	Context contextRequest `json:"context"`
}

func (r tradeRequest) toParams() models.TradeParams {
	return models.TradeParams{
		Type:      models.TradeType(r.Type),
		Direction: models.TradeDirection(r.Direction),
		Volume:    r.Volume,
		Price:     r.Price,
		Period:    r.Period,
		Details: models.TradeDetails{
			Contract:  r.Contract,
			Ancillary: r.Ancillary,
			Green:     r.Green,
		},
	}
}

type taskResponse struct {
	Task  approval.Snapshot `json:"task"`
	Steps []approval.Step   `json:"steps"`
}

func (s *Server) taskResponse(snap approval.Snapshot) taskResponse {
	return taskResponse{Task: snap, Steps: s.engine.Steps(snap)}
}

// assessTrade runs risk checks and classification without starting an
// approval workflow.
func (s *Server) assessTrade(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Wrap(errors.KindValidation, "malformed request body", err))
		return
	}

	trade, err := models.NewTrade(req.Trade.toParams())
	if err != nil {
		s.writeError(c, err)
		return
	}

	assessment, err := s.engine.AssessTrade(c.Request.Context(), trade, req.Context.toCheckContext())
	if err != nil {
		s.writeError(c, err)
		return
	}

	classification := s.engine.ClassifyRisk(trade, assessment)

	c.JSON(http.StatusOK, gin.H{
		"trade":          trade,
		"assessment":     assessment,
		"classification": classification,
	})
}

// createApproval is the composed submission flow: assess, classify and
// open the approval task.
func (s *Server) createApproval(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Wrap(errors.KindValidation, "malformed request body", err))
		return
	}

	trade, err := models.NewTrade(req.Trade.toParams())
	if err != nil {
		s.writeError(c, err)
		return
	}

	snap, assessment, classification, err := s.engine.SubmitTrade(c.Request.Context(), trade, req.Context.toCheckContext())
	if err != nil {
		if errors.IsKind(err, errors.KindBlockedAssessment) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      err.(*errors.Error),
				"assessment": assessment,
			})
			return
		}
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task":           snap,
		"steps":          s.engine.Steps(snap),
		"assessment":     assessment,
		"classification": classification,
	})
}

func (s *Server) listApprovals(c *gin.Context) {
	status := models.TaskStatus(c.Query("status"))
	tasks := s.engine.ListTasks(status)

	out := make([]taskResponse, 0, len(tasks))
	for _, snap := range tasks {
		out = append(out, s.taskResponse(snap))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (s *Server) getApproval(c *gin.Context) {
	taskID, ok := s.taskID(c)
	if !ok {
		return
	}

	snap, err := s.engine.GetTask(taskID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(snap))
}

type decisionRequest struct {
	Role     string `json:"role" binding:"required"`
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

func (s *Server) recordDecision(c *gin.Context) {
	taskID, ok := s.taskID(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Wrap(errors.KindValidation, "malformed request body", err))
		return
	}

	decision, ok := models.ParseDecision(req.Decision)
	if !ok {
		s.writeError(c, errors.Newf(errors.KindValidation, "unknown decision %q", req.Decision))
		return
	}

	snap, err := s.engine.RecordDecision(c.Request.Context(), taskID, models.Role(req.Role), decision, req.Comment)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(snap))
}

func (s *Server) executeApproval(c *gin.Context) {
	taskID, ok := s.taskID(c)
	if !ok {
		return
	}

	receipt, snap, err := s.engine.Execute(c.Request.Context(), taskID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task":    snap,
		"receipt": receipt,
	})
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) cancelApproval(c *gin.Context) {
	taskID, ok := s.taskID(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Wrap(errors.KindValidation, "cancellation requires a reason", err))
		return
	}

	snap, err := s.engine.Cancel(c.Request.Context(), taskID, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(snap))
}

func (s *Server) taskID(c *gin.Context) (uuid.UUID, bool) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.writeError(c, errors.Newf(errors.KindValidation, "invalid task id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return taskID, true
}
