package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/loangw/internal/observability"
)

// Admin and probe paths.
const (
	PathHealth        = "/health"
	PathMetrics       = "/metrics"
	PathBreakerStatus = "/circuit-breaker/status"
	PathBreakerReset  = "/circuit-breaker/reset/:service"
)

// breakerStatus is the admin view of one breaker. LastFailureTime is unix
// seconds or null.
type breakerStatus struct {
	State           string   `json:"state"`
	FailureCount    int      `json:"failure_count"`
	LastFailureTime *float64 `json:"last_failure_time"`
}

func (g *Gateway) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, g.health.Check(c.Request.Context()))
}

func (g *Gateway) handleBreakerStatus(c *gin.Context) {
	snapshot := g.breakers.Snapshot()

	body := make(map[string]breakerStatus, len(snapshot))
	for _, s := range snapshot {
		st := breakerStatus{
			State:        s.State.String(),
			FailureCount: s.FailureCount,
		}
		if s.LastFailure != nil {
			ts := float64(s.LastFailure.UnixNano()) / 1e9
			st.LastFailureTime = &ts
		}
		body[s.Service] = st
	}

	c.JSON(http.StatusOK, body)
}

func (g *Gateway) handleBreakerReset(c *gin.Context) {
	service := c.Param("service")

	if err := g.breakers.Reset(service); err != nil {
		abortWithError(c, err)
		return
	}

	g.logger.WithContext(c.Request.Context()).Info("circuit breaker reset",
		observability.String("service", service),
	)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("circuit breaker %s reset", service)})
}
