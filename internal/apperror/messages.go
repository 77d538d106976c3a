package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeRateLimitExceeded:        "Rate limit exceeded",

	CodeAdapterInitFailed:     "Price source initialization failed",
	CodeAdapterNotInitialized: "Price source not initialized",
	CodePoolNotFound:          "No pool exists for token pair",
	CodeQueryFailed:           "Price source query failed",
	CodeInvalidQuote:          "Invalid quote data",
	CodeSubscribeFailed:       "Price update subscription failed",

	CodePriceCalculationFailed: "Price calculation failed",
	CodeInsufficientLiquidity:  "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:       "Invalid trade size",
	CodeMissingReferencePrice:  "No reference price configured for token",

	CodeSimulationFailed:      "Transaction simulation failed",
	CodeExecutionFailed:       "Transaction execution failed",
	CodeDuplicateOpportunity:  "Opportunity already dispatched",
	CodeLockHeld:              "Execution lock held by another dispatcher",
	CodeExecutionDisabled:     "Execution is disabled",
	CodeTransactionSignFailed: "Failed to sign transaction",

	CodeCircuitOpen: "Circuit breaker is open",
	CodeCacheMiss:   "Cache miss",
}
