package service

import (
	"context"
	"time"

	"github.com/recruitlink/billing/internal/api/dto"
	"github.com/recruitlink/billing/internal/cache"
)

// ProcessorHealthTTL is how long a processor reachability result is reused
const ProcessorHealthTTL = 30 * time.Second

const healthCheckTimeout = 3 * time.Second

// HealthService reports whether webhooks can be processed
type HealthService interface {
	Check(ctx context.Context) *dto.HealthResponse
}

type healthService struct {
	ServiceParams
	cache cache.Cache
}

// NewHealthService caches processor reachability in c so probes do not spend processor rate limit
func NewHealthService(params ServiceParams, c cache.Cache) HealthService {
	return &healthService{
		ServiceParams: params,
		cache:         c,
	}
}

func (s *healthService) Check(ctx context.Context) *dto.HealthResponse {
	resp := &dto.HealthResponse{
		SecretConfigured:   s.Gateway.WebhookSecretConfigured(),
		ProcessorReachable: s.processorReachable(ctx),
		DatabaseReachable:  s.databaseReachable(ctx),
	}
	resp.Status = "ok"
	if !resp.Healthy() {
		resp.Status = "degraded"
	}
	return resp
}

func (s *healthService) processorReachable(ctx context.Context) bool {
	key := cache.GenerateKey(cache.PrefixHealth, "processor")
	if v, ok := s.cache.Get(ctx, key); ok {
		if reachable, ok := v.(bool); ok {
			return reachable
		}
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	reachable := true
	if err := s.Gateway.Ping(ctx); err != nil {
		s.Logger.Warnw("processor health check failed", "error", err)
		reachable = false
	}
	s.cache.Set(ctx, key, reachable, ProcessorHealthTTL)
	return reachable
}

func (s *healthService) databaseReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Warnw("database health check failed", "error", err)
		return false
	}
	return true
}
