/*
errors.go - Centralized error types for the capital ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch with errors.Is / errors.As; adapters (api, cli) map
  them onto status codes and exit codes.

ERROR CATEGORIES:
  1. Not found     - Unknown asset id in any operation
  2. Duplicate     - Creating an asset whose id already exists
  3. Integrity     - A ledger rule is broken (ordering, overlap, ...)
  4. Validation    - Malformed external input (attribution ingestion)
  5. Configuration - Unknown depreciation method (a caller bug)

None of these are retried by the core and none are fatal.

SEE ALSO:
  - integrity.go: Produces IntegrityError
  - attribution/adapter.go: Produces validation errors
  - api/handlers.go: Maps errors onto HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAssetNotFound is returned when a referenced asset doesn't exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrDuplicateAsset is returned when creating an asset whose id is taken.
	// There are no merge or overwrite semantics.
	ErrDuplicateAsset = errors.New("asset already exists")

	// ErrIntegrityViolation is the root of every ledger-rule violation.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrAssetRetired is returned for transitions on a retired asset.
	ErrAssetRetired = fmt.Errorf("%w: asset is retired", ErrIntegrityViolation)

	// ErrValidation is returned for malformed external input.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedMethod is returned for an unknown depreciation method.
	ErrUnsupportedMethod = errors.New("unsupported depreciation method")

	// ErrTransactionFailed is returned when a store cannot persist a write.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IntegrityError describes a broken ledger rule.
type IntegrityError struct {
	Rule    string // e.g. "asset_owner", "entry_order", "depreciation_overlap"
	Message string
}

func (e *IntegrityError) Error() string {
	return e.Message
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrityViolation
}

func violation(rule, format string, args ...any) *IntegrityError {
	return &IntegrityError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError identifies the missing asset, or the event missing from it.
type NotFoundError struct {
	AssetID AssetID
	EventID EventID
}

func (e *NotFoundError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("unknown event %s for asset %s", e.EventID, e.AssetID)
	}
	return fmt.Sprintf("unknown asset %s", e.AssetID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrAssetNotFound
}

// DuplicateError identifies the asset id that is already taken.
type DuplicateError struct {
	AssetID AssetID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("asset with id %s already exists", e.AssetID)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateAsset
}

// UnsupportedMethodError names the unknown method.
type UnsupportedMethodError struct {
	Method DepreciationMethod
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported depreciation method: %q", string(e.Method))
}

func (e *UnsupportedMethodError) Unwrap() error {
	return ErrUnsupportedMethod
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateAsset) ||
		errors.Is(err, ErrIntegrityViolation) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnsupportedMethod)
}

// IsNotFound returns true if the error indicates a missing asset.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssetNotFound)
}

// IsIntegrityViolation returns true for any broken ledger rule.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}
