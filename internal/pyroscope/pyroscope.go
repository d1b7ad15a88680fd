package pyroscope

import (
	"context"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/types"
	"go.uber.org/fx"
)

type Service struct {
	cfg      *config.Configuration
	logger   *logger.Logger
	profiler *pyroscope.Profiler
}

// Module provides fx options for Pyroscope
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewPyroscopeService),
		fx.Invoke(RegisterHooks),
	)
}

// RegisterHooks starts continuous profiling on start and stops it on shutdown
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.IsEnabled() {
				svc.logger.Info("Pyroscope profiling is disabled")
				return nil
			}
			return svc.start()
		},
		OnStop: func(ctx context.Context) error {
			if svc.profiler == nil {
				return nil
			}
			svc.logger.Info("stopping Pyroscope profiling")
			return svc.profiler.Stop()
		},
	})
}

// NewPyroscopeService creates a new Pyroscope service
func NewPyroscopeService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Service) start() error {
	cfg := s.cfg.Pyroscope
	profileTypes := s.getProfileTypes()

	pyroscopeConfig := pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes:    profileTypes,
		SampleRate:      cfg.SampleRate,
		DisableGCRuns:   cfg.DisableGCRuns,
		Logger:          s,
		Tags: map[string]string{
			"deployment_mode": string(s.cfg.Deployment.Mode),
		},
	}
	if cfg.BasicAuthUser != "" {
		pyroscopeConfig.BasicAuthUser = cfg.BasicAuthUser
		pyroscopeConfig.BasicAuthPassword = cfg.BasicAuthPass
	}

	profiler, err := pyroscope.Start(pyroscopeConfig)
	if err != nil {
		s.logger.Errorw("failed to initialize Pyroscope", "error", err)
		return err
	}
	s.profiler = profiler

	s.logger.Infow("Pyroscope profiling initialized",
		"application_name", cfg.ApplicationName,
		"server_address", cfg.ServerAddress,
		"has_basic_auth", cfg.BasicAuthUser != "",
		"sample_rate", cfg.SampleRate,
		"profile_types", profileTypes,
	)
	return nil
}

// Debugf, Infof and Errorf implement pyroscope.Logger
func (s *Service) Debugf(format string, args ...interface{}) {
	if s.cfg.Logging.Level == types.LogLevelDebug {
		s.logger.Debugf("[Pyroscope] "+format, args...)
	}
}

func (s *Service) Infof(format string, args ...interface{}) {
	s.logger.Infof("[Pyroscope] "+format, args...)
}

func (s *Service) Errorf(format string, args ...interface{}) {
	s.logger.Errorf("[Pyroscope] "+format, args...)
}

// IsEnabled returns whether Pyroscope profiling is enabled
func (s *Service) IsEnabled() bool {
	return s.cfg.Pyroscope.Enabled
}

// getProfileTypes converts configured profile type names, falling back to the defaults
func (s *Service) getProfileTypes() []pyroscope.ProfileType {
	if len(s.cfg.Pyroscope.ProfileTypes) == 0 {
		return []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileGoroutines,
		}
	}

	var out []pyroscope.ProfileType
	for _, name := range s.cfg.Pyroscope.ProfileTypes {
		switch strings.ToLower(name) {
		case "cpu":
			out = append(out, pyroscope.ProfileCPU)
		case "inuse_objects":
			out = append(out, pyroscope.ProfileInuseObjects)
		case "alloc_objects":
			out = append(out, pyroscope.ProfileAllocObjects)
		case "inuse_space":
			out = append(out, pyroscope.ProfileInuseSpace)
		case "alloc_space":
			out = append(out, pyroscope.ProfileAllocSpace)
		case "goroutines":
			out = append(out, pyroscope.ProfileGoroutines)
		case "mutex_count":
			out = append(out, pyroscope.ProfileMutexCount)
		case "mutex_duration":
			out = append(out, pyroscope.ProfileMutexDuration)
		case "block_count":
			out = append(out, pyroscope.ProfileBlockCount)
		case "block_duration":
			out = append(out, pyroscope.ProfileBlockDuration)
		default:
			s.logger.Warnw("unknown profile type", "type", name)
		}
	}
	return out
}

// TagWrapper runs fn with profiling labels attached
func (s *Service) TagWrapper(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if !s.IsEnabled() {
		fn(ctx)
		return
	}

	var labelPairs []string
	for key, value := range labels {
		labelPairs = append(labelPairs, key, value)
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(labelPairs...), fn)
}
