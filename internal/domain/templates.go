package domain

// StageDefinition describes one stage of a workflow template
type StageDefinition struct {
	Name                 string
	Order                int
	RequiredRole         UserRole
	RequiresSignedUpload bool
}

// WorkflowTemplate is the ordered set of stage definitions for a purpose
type WorkflowTemplate struct {
	Purpose string
	Code    string
	Stages  []StageDefinition
}

// DefaultPurpose is the template used when a document's purpose is unknown
const DefaultPurpose = "General Correspondence"

var workflowTemplates = map[string]WorkflowTemplate{
	"Incident Report": {
		Purpose: "Incident Report",
		Code:    "INC",
		Stages: []StageDefinition{
			{Name: "Initial Review", Order: 1, RequiredRole: RolePersonnel, RequiresSignedUpload: true},
			{Name: "Supervisor Approval", Order: 2, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
			{Name: "Final Approval", Order: 3, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
		},
	},
	"Personnel Action": {
		Purpose: "Personnel Action",
		Code:    "PER",
		Stages: []StageDefinition{
			{Name: "Personnel Sign", Order: 1, RequiredRole: RolePersonnel, RequiresSignedUpload: true},
			{Name: "Unit Commander Endorsement", Order: 2, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
			{Name: "Admin Records Review", Order: 3, RequiredRole: RolePersonnel, RequiresSignedUpload: true},
			{Name: "Final Approval", Order: 4, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
		},
	},
	"Operational Order": {
		Purpose: "Operational Order",
		Code:    "OPS",
		Stages: []StageDefinition{
			{Name: "Drafting Officer Sign", Order: 1, RequiredRole: RolePersonnel, RequiresSignedUpload: true},
			{Name: "Operations Review", Order: 2, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
			{Name: "Command Approval", Order: 3, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
		},
	},
	"Memorandum": {
		Purpose: "Memorandum",
		Code:    "MEM",
		Stages: []StageDefinition{
			{Name: "Originator Sign", Order: 1, RequiredRole: RolePersonnel, RequiresSignedUpload: true},
			{Name: "Releasing Authority Confirmation", Order: 2, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
		},
	},
	DefaultPurpose: {
		Purpose: DefaultPurpose,
		Code:    "GEN",
		Stages: []StageDefinition{
			{Name: "Personnel Sign", Order: 1, RequiredRole: RolePersonnel, RequiresSignedUpload: true},
			{Name: "Authority Confirmation", Order: 2, RequiredRole: RoleAuthority, RequiresSignedUpload: true},
		},
	},
}

// GetTemplate returns the workflow template registered for a purpose.
// Unknown or empty purposes degrade to the default template; lookup never fails.
func GetTemplate(purpose string) WorkflowTemplate {
	if tpl, ok := workflowTemplates[purpose]; ok {
		return tpl
	}
	return workflowTemplates[DefaultPurpose]
}

// PurposeCode returns the 3-letter tracking-number code for a purpose
func PurposeCode(purpose string) string {
	return GetTemplate(purpose).Code
}

// KnownPurposes returns every purpose registered in the catalog
func KnownPurposes() []string {
	purposes := make([]string, 0, len(workflowTemplates))
	for purpose := range workflowTemplates {
		purposes = append(purposes, purpose)
	}
	return purposes
}
