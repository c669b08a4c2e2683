// Package server exposes the engines over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wealthledger/internal/analytics"
	"wealthledger/internal/domain"
	"wealthledger/internal/ledger"
	"wealthledger/internal/observability"
	"wealthledger/internal/session"
	"wealthledger/internal/store"
)

const userIDHeader = "X-User-ID"

// Server serves the trade query, recompute and account deletion endpoints.
// Identity arrives as a header set by the gateway in front of this service.
type Server struct {
	ledger    *ledger.Engine
	analytics *analytics.Engine
	store     store.Store
	health    *observability.HealthChecker
	log       zerolog.Logger
}

func New(le *ledger.Engine, ae *analytics.Engine, st store.Store, health *observability.HealthChecker, log zerolog.Logger) *Server {
	return &Server{ledger: le, analytics: ae, store: st, health: health, log: log}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health.Liveness)
	r.GET("/readyz", s.health.Readiness)

	v1 := r.Group("/api/v1", s.requireUser)
	v1.GET("/accounts/:id/trades", s.queryTrades)
	v1.POST("/accounts/:id/recompute", s.recompute)
	v1.DELETE("/accounts/:id", s.deleteAccount)

	return r
}

// requireUser resolves the caller's identity from the gateway header.
func (s *Server) requireUser(c *gin.Context) {
	raw := c.GetHeader(userIDHeader)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func (s *Server) userID(c *gin.Context) uuid.UUID {
	return c.MustGet("userID").(uuid.UUID)
}

func (s *Server) queryTrades(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	f := s.parseFilter(c)
	f.UserID = s.userID(c)
	f.AccountID = accountID

	report, err := s.analytics.Query(c.Request.Context(), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) recompute(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	balance, err := s.ledger.Recompute(c.Request.Context(), s.userID(c), accountID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accountId": accountID, "balance": balance})
}

func (s *Server) deleteAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	if err := s.store.DeleteAccountCascade(c.Request.Context(), s.userID(c), accountID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps domain errors to status codes. Accounts the caller does
// not own read as absent, so forbidden also comes back as 404.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, domain.ErrForbidden):
		s.log.Warn().Err(err).Str("path", c.FullPath()).Msg("cross-user access attempt")
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseFilter reads query parameters into an analytics.Filter. Malformed
// clauses are dropped rather than rejected, so a bad value widens the
// result set instead of failing the request.
func (s *Server) parseFilter(c *gin.Context) analytics.Filter {
	var f analytics.Filter

	if v := c.Query("kind"); v != "" {
		if kind, ok := domain.ParseTradeKind(v); ok {
			f.Kind = kind
		} else {
			s.dropClause(c, "kind", v)
		}
	}

	f.Instrument = c.Query("instrument")
	f.Pattern = c.Query("pattern")

	if v := c.Query("direction"); v != "" {
		if dir, ok := domain.ParseDirection(v); ok {
			f.Direction = &dir
		} else {
			s.dropClause(c, "direction", v)
		}
	}

	if v := c.Query("from"); v != "" {
		if ts, ok := parseTime(v); ok {
			f.From = &ts
		} else {
			s.dropClause(c, "from", v)
		}
	}
	if v := c.Query("to"); v != "" {
		if ts, ok := parseTime(v); ok {
			f.To = &ts
		} else {
			s.dropClause(c, "to", v)
		}
	}

	if v := c.Query("session"); v != "" {
		if sess, ok := session.Parse(v); ok {
			f.Session = &sess
		} else {
			s.dropClause(c, "session", v)
		}
	}

	if v := c.Query("minLots"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			f.MinLots = &d
		} else {
			s.dropClause(c, "minLots", v)
		}
	}
	if v := c.Query("maxLots"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			f.MaxLots = &d
		} else {
			s.dropClause(c, "maxLots", v)
		}
	}

	if v := c.Query("minPct"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinPct = &p
		} else {
			s.dropClause(c, "minPct", v)
		}
	}
	if v := c.Query("maxPct"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxPct = &p
		} else {
			s.dropClause(c, "maxPct", v)
		}
	}

	if v := c.Query("groupBy"); v != "" {
		if g, ok := analytics.ParseGroupBy(v); ok {
			f.GroupBy = g
		} else {
			s.dropClause(c, "groupBy", v)
		}
	}

	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Page = n
		}
	}
	if v := c.Query("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Size = n
		}
	}

	return f
}

func (s *Server) dropClause(c *gin.Context, name, value string) {
	s.log.Warn().
		Str("param", name).
		Str("value", value).
		Str("path", c.FullPath()).
		Msg("dropping malformed filter clause")
}

// parseTime accepts RFC 3339 timestamps or bare dates.
func parseTime(v string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.UTC(), true
	}
	if ts, err := time.Parse("2006-01-02", v); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}
