package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kalanyuz/gcp-cryptobot/internal/alert"
	"github.com/kalanyuz/gcp-cryptobot/internal/core"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange"
)

// Server maps inbound trading signals onto the configured exchange adapter.
// Route shape mirrors the webhook contract: one POST per operation, the
// signal body carried as core.BotRequest.
type Server struct {
	exchange exchange.Exchange
	alerter  alert.Alerter
	log      *logrus.Entry
}

func New(ex exchange.Exchange, alerter alert.Alerter) *Server {
	return &Server{
		exchange: ex,
		alerter:  alerter,
		log:      logrus.WithField("component", "server"),
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.handleHealth)
	group := router.Group("/exchange")
	group.POST("/buy", s.handleBuy)
	group.POST("/sell", s.handleSell)
	group.POST("/clear", s.handleClear)
	group.POST("/bidDips", s.handleBidDips)
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "exchange": s.exchange.Name()})
}

func (s *Server) handleBuy(c *gin.Context) {
	req, ok := s.bindSignal(c)
	if !ok {
		return
	}
	result, err := s.exchange.Buy(c.Request.Context(), orderFromSignal(req))
	s.respond(c, "buy", req, result, err)
}

func (s *Server) handleSell(c *gin.Context) {
	req, ok := s.bindSignal(c)
	if !ok {
		return
	}
	result, err := s.exchange.Sell(c.Request.Context(), orderFromSignal(req))
	s.respond(c, "sell", req, result, err)
}

func (s *Server) handleClear(c *gin.Context) {
	req, ok := s.bindSignal(c)
	if !ok {
		return
	}
	result, err := s.exchange.Clear(c.Request.Context(), req.Asset, req.Denominator)
	s.respond(c, "clear", req, result, err)
}

func (s *Server) handleBidDips(c *gin.Context) {
	req, ok := s.bindSignal(c)
	if !ok {
		return
	}
	result, err := s.exchange.BidDips(c.Request.Context(), req.Asset, req.Denominator, req.Dip)
	s.respond(c, "bidDips", req, result, err)
}

func (s *Server) bindSignal(c *gin.Context) (core.BotRequest, bool) {
	var req core.BotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed signal: " + err.Error()})
		return core.BotRequest{}, false
	}
	if req.Asset == "" || req.Denominator == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset and denominator are required"})
		return core.BotRequest{}, false
	}
	return req, true
}

// orderFromSignal picks the order type from the signal shape: a price makes
// it a limit order, otherwise it executes at market.
func orderFromSignal(req core.BotRequest) core.OrderRequest {
	orderType := core.Market
	if req.Price != nil {
		orderType = core.Limit
	}
	return core.OrderRequest{
		Asset:       req.Asset,
		Denominator: req.Denominator,
		Type:        orderType,
		Amount:      req.Amount,
		Price:       req.Price,
	}
}

func (s *Server) respond(c *gin.Context, operation string, req core.BotRequest, result core.OrderResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, result)
		return
	}
	s.log.WithFields(logrus.Fields{
		"operation":   operation,
		"asset":       req.Asset,
		"denominator": req.Denominator,
	}).WithError(err).Error("exchange call failed")
	if s.alerter != nil {
		s.alerter.Important(operation+"_failed", map[string]string{
			"asset":       req.Asset,
			"denominator": req.Denominator,
			"error":       err.Error(),
		})
	}
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// statusForError translates the error taxonomy into HTTP statuses. Bad input
// is the caller's fault, a missing holding or price means the expectation
// behind the signal failed, everything else is an upstream exchange problem.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAssetNotFound), errors.Is(err, core.ErrPriceUnavailable):
		return http.StatusExpectationFailed
	default:
		return http.StatusBadGateway
	}
}
