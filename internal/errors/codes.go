package errors

// Error code constants.
// Format: CATEGORY_SPECIFIC_DETAIL
// Clients map these codes to their own messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"   // login required
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED"  // token expired
	AuthTokenInvalid = "AUTH_TOKEN_INVALID"  // malformed or badly signed token

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationInvalidURL   = "VALIDATION_INVALID_URL"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== People (PERSON_) ====================
	PersonNotFound = "PERSON_NOT_FOUND"

	// ==================== Gift maps (GIFTMAP_) ====================
	GiftMapNotFound     = "GIFTMAP_NOT_FOUND"
	GiftMapItemNotFound = "GIFTMAP_ITEM_NOT_FOUND"

	// ==================== Sharing (SHARE_ / SYNC_) ====================
	ShareLinkInvalid = "SHARE_LINK_INVALID" // token unknown or sharing disabled
	SyncConflict     = "SYNC_CONFLICT"      // optimistic retry gave up

	// ==================== Rate limiting (RATE_) ====================
	RateLimited = "RATE_LIMITED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
