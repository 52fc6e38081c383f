package healthcheck

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hellofresh/health-go/v4"

	"github.com/circleci/testservers/system"
)

// Register adds /health and /live to r, checking everything in checked.
func Register(r gin.IRoutes, checked []system.HealthChecker) error {
	live, ready, err := newHealthHandlers(checked)
	if err != nil {
		return fmt.Errorf("failed to create health checks: %w", err)
	}

	r.GET("/health", gin.WrapH(ready.Handler()))
	r.GET("/live", gin.WrapH(live.Handler()))
	return nil
}

func newHealthHandlers(checked []system.HealthChecker) (*health.Health, *health.Health, error) {
	live, err := health.New()
	if err != nil {
		return nil, nil, err
	}

	ready, err := health.New()
	if err != nil {
		return nil, nil, err
	}

	for _, c := range checked {
		name, readyCheck, liveCheck := c.HealthChecks()

		if readyCheck != nil {
			err = ready.Register(health.Config{
				Name:    name,
				Timeout: time.Second * 5,
				Check:   readyCheck,
			})
			if err != nil {
				return nil, nil, err
			}
		}

		if liveCheck != nil {
			err = live.Register(health.Config{
				Name:    name,
				Timeout: time.Second * 5,
				Check:   liveCheck,
			})
			if err != nil {
				return nil, nil, err
			}
		}
	}

	return live, ready, nil
}
