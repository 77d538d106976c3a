package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeRateLimitExceeded        Code = "RATE_LIMIT_EXCEEDED"
)

// Price sources
const (
	CodeAdapterInitFailed     Code = "ADAPTER_INIT_FAILED"
	CodeAdapterNotInitialized Code = "ADAPTER_NOT_INITIALIZED"
	CodePoolNotFound          Code = "POOL_NOT_FOUND"
	CodeQueryFailed           Code = "QUERY_FAILED"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeSubscribeFailed       Code = "SUBSCRIBE_FAILED"
)

// Detection and decision
const (
	CodePriceCalculationFailed Code = "PRICE_CALCULATION_FAILED"
	CodeInsufficientLiquidity  Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize       Code = "INVALID_TRADE_SIZE"
	CodeMissingReferencePrice  Code = "MISSING_REFERENCE_PRICE"
)

// Execution
const (
	CodeSimulationFailed      Code = "SIMULATION_FAILED"
	CodeExecutionFailed       Code = "EXECUTION_FAILED"
	CodeDuplicateOpportunity  Code = "DUPLICATE_OPPORTUNITY"
	CodeLockHeld              Code = "LOCK_HELD"
	CodeExecutionDisabled     Code = "EXECUTION_DISABLED"
	CodeTransactionSignFailed Code = "TRANSACTION_SIGN_FAILED"
)

// Resilience
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
	CodeCacheMiss   Code = "CACHE_MISS"
)
