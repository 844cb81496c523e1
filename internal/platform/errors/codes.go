package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound              Code = "NOT_FOUND"
	CodeGameUnknown           Code = "GAME_UNKNOWN"
	CodeRuleNotFound          Code = "RULE_NOT_FOUND"
	CodeConfigurationNotFound Code = "CONFIGURATION_NOT_FOUND"

	// Registry errors
	CodeRuleDefinitionInvalid      Code = "RULE_DEFINITION_INVALID"
	CodeRuleDuplicateRegistration  Code = "RULE_DUPLICATE_REGISTRATION"
	CodeRegistrySealed             Code = "REGISTRY_SEALED"
	CodeRuleCatalogReferenceBroken Code = "RULE_CATALOG_REFERENCE_BROKEN"

	// Configuration errors
	CodeConfigurationNameEmpty Code = "CONFIGURATION_NAME_EMPTY"
	CodeRuleNotActive          Code = "RULE_NOT_ACTIVE"
	CodeRuleParameterUnknown   Code = "RULE_PARAMETER_UNKNOWN"
	CodeRuleParameterInvalid   Code = "RULE_PARAMETER_INVALID"

	// Record errors
	CodeRecordMalformed          Code = "RECORD_MALFORMED"
	CodeRecordUnsupportedVersion Code = "RECORD_UNSUPPORTED_VERSION"
	CodeRecordInvalid            Code = "RECORD_INVALID"

	// Request errors
	CodeArgumentMissing  Code = "ARGUMENT_MISSING"
	CodeFilterInvalid    Code = "FILTER_INVALID"
	CodeFrameInvalid     Code = "FRAME_INVALID"
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"
)

// Kind groups codes into the engine error taxonomy.
type Kind int

const (
	// KindInternal covers codes without a taxonomy entry.
	KindInternal Kind = iota
	// KindNotFound is an unknown game, rule, or configuration.
	KindNotFound
	// KindValidation is a semantically invalid request or import.
	KindValidation
	// KindParse is a malformed import payload.
	KindParse
	// KindDuplicateRegistration is a conflicting rule id at catalog load.
	KindDuplicateRegistration
)

// Kind returns the taxonomy entry for the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotFound,
		CodeGameUnknown,
		CodeRuleNotFound,
		CodeConfigurationNotFound:
		return KindNotFound
	case CodeRecordMalformed,
		CodeRecordUnsupportedVersion:
		return KindParse
	case CodeRecordInvalid,
		CodeRuleDefinitionInvalid,
		CodeRuleCatalogReferenceBroken,
		CodeConfigurationNameEmpty,
		CodeRuleNotActive,
		CodeRuleParameterUnknown,
		CodeRuleParameterInvalid,
		CodeArgumentMissing,
		CodeFilterInvalid,
		CodeFrameInvalid,
		CodePageTokenInvalid:
		return KindValidation
	case CodeRuleDuplicateRegistration:
		return KindDuplicateRegistration
	default:
		return KindInternal
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRuleDefinitionInvalid,
		CodeRuleCatalogReferenceBroken,
		CodeConfigurationNameEmpty,
		CodeRuleParameterUnknown,
		CodeRuleParameterInvalid,
		CodeRecordMalformed,
		CodeRecordUnsupportedVersion,
		CodeRecordInvalid,
		CodeArgumentMissing,
		CodeFilterInvalid,
		CodeFrameInvalid,
		CodePageTokenInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeRuleNotActive,
		CodeRegistrySealed:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeGameUnknown,
		CodeRuleNotFound,
		CodeConfigurationNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeRuleDuplicateRegistration:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
