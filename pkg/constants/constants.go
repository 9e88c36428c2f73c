package constants

import "github.com/go-playground/validator/v10"

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	TenantIDKey  ContextKey = "tenant_id"
	RequestStart ContextKey = "request_start"
	AppKey       ContextKey = "app"
)

// Validate is shared so struct tag caches are built once.
var Validate = validator.New(validator.WithRequiredStructEnabled())
