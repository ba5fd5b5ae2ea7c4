package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// The prefix before the underscore names the owning module.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Sentinel-like codes used by the chain helpers.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Configuration Error Codes
const (
	ErrCodeConfigLoad    ErrorCode = "CONFIG_001"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_002"
)

// Vocabulary Error Codes
const (
	ErrCodeVocabLoadFailed   ErrorCode = "VOCAB_001"
	ErrCodeVocabUnknownToken ErrorCode = "VOCAB_002"
	ErrCodeVocabEmpty        ErrorCode = "VOCAB_003"
	ErrCodeSMILESInvalid     ErrorCode = "VOCAB_004"
	ErrCodeCorpusReadFailed  ErrorCode = "VOCAB_005"
	ErrCodeSequenceTooLong   ErrorCode = "VOCAB_006"
)

// Generator Error Codes
const (
	ErrCodeGeneratorShape        ErrorCode = "GEN_001"
	ErrCodeGeneratorContinuation ErrorCode = "GEN_002"
	ErrCodeCheckpointInvalid     ErrorCode = "GEN_003"
	ErrCodeCheckpointNotFound    ErrorCode = "GEN_004"
	ErrCodeOptimizerFailed       ErrorCode = "GEN_005"
)

// Environment Error Codes
const (
	ErrCodeEnvScoringFailed   ErrorCode = "ENV_001"
	ErrCodeEnvDatasetInvalid  ErrorCode = "ENV_002"
	ErrCodeEnvModelInvalid    ErrorCode = "ENV_003"
	ErrCodeFingerprintFailed  ErrorCode = "ENV_004"
	ErrCodeEnvNotEnoughLabels ErrorCode = "ENV_005"
)

// Policy Strategy Error Codes
const (
	ErrCodePolicyConfig        ErrorCode = "POLICY_001"
	ErrCodePolicyRewardShape   ErrorCode = "POLICY_002"
	ErrCodePolicyGeneratorCall ErrorCode = "POLICY_003"
	ErrCodePolicyCheckShape    ErrorCode = "POLICY_004"
)

// Training Error Codes
const (
	ErrCodeTrainingInterrupted ErrorCode = "TRAIN_001"
	ErrCodeRunLocked           ErrorCode = "TRAIN_002"
	ErrCodeRunNotFound         ErrorCode = "TRAIN_003"
	ErrCodeCheckpointSave      ErrorCode = "TRAIN_004"
)

// Infrastructure Error Codes
const (
	ErrCodeMessageQueue   ErrorCode = "MQ_001"
	ErrCodeStorage        ErrorCode = "STORAGE_001"
	ErrCodeObjectNotFound ErrorCode = "STORAGE_002"
	ErrCodeLockNotHeld    ErrorCode = "CACHE_002"
	ErrCodeLockFailed     ErrorCode = "CACHE_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeConfigLoad:    http.StatusInternalServerError,
	ErrCodeConfigInvalid: http.StatusBadRequest,

	ErrCodeVocabLoadFailed:   http.StatusInternalServerError,
	ErrCodeVocabUnknownToken: http.StatusBadRequest,
	ErrCodeVocabEmpty:        http.StatusBadRequest,
	ErrCodeSMILESInvalid:     http.StatusBadRequest,
	ErrCodeCorpusReadFailed:  http.StatusBadRequest,
	ErrCodeSequenceTooLong:   http.StatusBadRequest,

	ErrCodeGeneratorShape:        http.StatusInternalServerError,
	ErrCodeGeneratorContinuation: http.StatusInternalServerError,
	ErrCodeCheckpointInvalid:     http.StatusUnprocessableEntity,
	ErrCodeCheckpointNotFound:    http.StatusNotFound,
	ErrCodeOptimizerFailed:       http.StatusInternalServerError,

	ErrCodeEnvScoringFailed:   http.StatusInternalServerError,
	ErrCodeEnvDatasetInvalid:  http.StatusBadRequest,
	ErrCodeEnvModelInvalid:    http.StatusUnprocessableEntity,
	ErrCodeFingerprintFailed:  http.StatusInternalServerError,
	ErrCodeEnvNotEnoughLabels: http.StatusBadRequest,

	ErrCodePolicyConfig:        http.StatusBadRequest,
	ErrCodePolicyRewardShape:   http.StatusInternalServerError,
	ErrCodePolicyGeneratorCall: http.StatusInternalServerError,
	ErrCodePolicyCheckShape:    http.StatusInternalServerError,

	ErrCodeTrainingInterrupted: http.StatusServiceUnavailable,
	ErrCodeRunLocked:           http.StatusConflict,
	ErrCodeRunNotFound:         http.StatusNotFound,
	ErrCodeCheckpointSave:      http.StatusInternalServerError,

	ErrCodeMessageQueue:   http.StatusInternalServerError,
	ErrCodeStorage:        http.StatusInternalServerError,
	ErrCodeObjectNotFound: http.StatusNotFound,
	ErrCodeLockNotHeld:    http.StatusConflict,
	ErrCodeLockFailed:     http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeConfigLoad:    "failed to load configuration",
	ErrCodeConfigInvalid: "invalid configuration",

	ErrCodeVocabLoadFailed:   "failed to load vocabulary",
	ErrCodeVocabUnknownToken: "token not in vocabulary",
	ErrCodeVocabEmpty:        "vocabulary is empty",
	ErrCodeSMILESInvalid:     "invalid SMILES",
	ErrCodeCorpusReadFailed:  "failed to read corpus",
	ErrCodeSequenceTooLong:   "sequence exceeds maximum length",

	ErrCodeGeneratorShape:        "generator shape mismatch",
	ErrCodeGeneratorContinuation: "invalid sampling continuation",
	ErrCodeCheckpointInvalid:     "invalid model checkpoint",
	ErrCodeCheckpointNotFound:    "model checkpoint not found",
	ErrCodeOptimizerFailed:       "optimizer step failed",

	ErrCodeEnvScoringFailed:   "environment scoring failed",
	ErrCodeEnvDatasetInvalid:  "invalid environment dataset",
	ErrCodeEnvModelInvalid:    "invalid environment model",
	ErrCodeFingerprintFailed:  "fingerprint calculation failed",
	ErrCodeEnvNotEnoughLabels: "not enough labelled molecules",

	ErrCodePolicyConfig:        "invalid policy strategy configuration",
	ErrCodePolicyRewardShape:   "environment returned wrong number of rewards",
	ErrCodePolicyGeneratorCall: "generator call failed",
	ErrCodePolicyCheckShape:    "validity check returned wrong number of flags",

	ErrCodeTrainingInterrupted: "training interrupted",
	ErrCodeRunLocked:           "training run is locked by another process",
	ErrCodeRunNotFound:         "training run not found",
	ErrCodeCheckpointSave:      "failed to save checkpoint",

	ErrCodeMessageQueue:   "message queue error",
	ErrCodeStorage:        "object storage error",
	ErrCodeObjectNotFound: "object not found",
	ErrCodeLockNotHeld:    "lock not held",
	ErrCodeLockFailed:     "lock operation failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
