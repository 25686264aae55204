package domain

// APIError represents a standardized API error with HTTP status code
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// Common error types for RFC 7807 Problem Details
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeBadRequest   = "bad_request"
	ErrorTypeConflict     = "conflict"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeInternal     = "internal_error"
)

// AccessReason is the machine-readable reason code attached to an access
// control decision
type AccessReason string

const (
	AccessAdmin                AccessReason = "admin_access"
	AccessDocumentOwner        AccessReason = "document_owner"
	AccessWorkflowAssigned     AccessReason = "workflow_assigned"
	AccessDeniedNotFound       AccessReason = "document_not_found"
	AccessDeniedPersonnel      AccessReason = "not_authorized_personnel"
	AccessDeniedNotAssigned    AccessReason = "not_assigned_to_workflow"
	AccessDeniedUnknownRole    AccessReason = "unknown_role"
	AccessDeniedClassification AccessReason = "classification_restricted"
)

// AccessDecision is the result of evaluating access for a (user, document) pair
type AccessDecision struct {
	Allowed bool         `json:"allowed"`
	Reason  AccessReason `json:"reason"`
}
