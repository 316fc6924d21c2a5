package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Names of the external feeds guarded by circuit breakers.
const (
	FeedAvailability = "availability"
	FeedSchedule     = "schedule"
	FeedGameLogs     = "gamelogs"
)

type CircuitBreakerService struct {
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

func NewCircuitBreakerService(threshold int, timeout time.Duration, logger *logrus.Logger) *CircuitBreakerService {
	settings := gobreaker.Settings{
		Name:        "feed",
		MaxRequests: uint32(threshold),
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"feed":      name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	// Separate breakers per upstream feed so one unhealthy source does not
	// trip the others.
	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, feed := range []string{FeedAvailability, FeedSchedule, FeedGameLogs} {
		feedSettings := settings
		feedSettings.Name = feed
		breakers[feed] = gobreaker.NewCircuitBreaker(feedSettings)
	}

	return &CircuitBreakerService{
		breakers: breakers,
		logger:   logger,
	}
}

// Execute wraps a call with circuit breaker protection.
func (cb *CircuitBreakerService) Execute(feed string, fn func() (interface{}, error)) (interface{}, error) {
	breaker, exists := cb.breakers[feed]
	if !exists {
		cb.logger.WithFields(logrus.Fields{
			"component": "circuit_breaker",
			"feed":      feed,
		}).Warn("No circuit breaker found for feed, executing without protection")
		return fn()
	}

	return breaker.Execute(fn)
}

// State returns the current state of a feed's breaker.
func (cb *CircuitBreakerService) State(feed string) gobreaker.State {
	if breaker, exists := cb.breakers[feed]; exists {
		return breaker.State()
	}
	return gobreaker.StateClosed
}
