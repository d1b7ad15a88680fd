package postgres

import "go.uber.org/fx"

// Module provides every postgres-backed repository
var Module = fx.Options(
	fx.Provide(
		NewPlanRepository,
		NewSubscriptionRepository,
		NewLedgerRepository,
		NewCustomerRepository,
		NewProcessedEventRepository,
	),
)
