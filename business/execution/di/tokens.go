// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/execution/app"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	// Dispatcher resolves to nil when execution is disabled.
	Dispatcher = di.NewToken[*app.Dispatcher]("execution.Dispatcher")
)

// GetDispatcher returns the dispatcher, nil when execution is disabled.
func GetDispatcher(c di.ServiceRegistry) *app.Dispatcher {
	return di.GetToken(c, Dispatcher)
}
