package audit

// Kind identifies a governed entity type by its logical name, independent of
// any storage-layer naming.
type Kind string

// Auditable entity kinds.
const (
	KindAsset                 Kind = "Asset"
	KindRisk                  Kind = "Risk"
	KindControl               Kind = "Control"
	KindIncident              Kind = "Incident"
	KindInternalAudit         Kind = "InternalAudit"
	KindManagementReview      Kind = "ManagementReview"
	KindISMSContext           Kind = "ISMSContext"
	KindISMSObjective         Kind = "ISMSObjective"
	KindTraining              Kind = "Training"
	KindBusinessProcess       Kind = "BusinessProcess"
	KindAuditChecklist        Kind = "AuditChecklist"
	KindComplianceRequirement Kind = "ComplianceRequirement"
	KindComplianceFramework   Kind = "ComplianceFramework"
	KindComplianceMapping     Kind = "ComplianceMapping"
	KindRiskTreatmentPlan     Kind = "RiskTreatmentPlan"
	KindDocument              Kind = "Document"
	KindUser                  Kind = "User"
	KindRole                  Kind = "Role"
)

// Recordable is implemented by every model whose mutations feed the audit
// trail and the workflow trigger evaluator.
type Recordable interface {
	AuditKind() Kind
	AuditID() uint
	// AuditSnapshot returns the audited fields of the entity. The field list
	// is explicit per kind; anything not listed is never captured.
	AuditSnapshot() map[string]any
}

// auditableKinds is the fixed allow-list of entity kinds eligible for
// auditing and workflow triggering. Adding a kind here is the only change
// required to bring a new entity under governance.
var auditableKinds = map[Kind]struct{}{
	KindAsset:                 {},
	KindRisk:                  {},
	KindControl:               {},
	KindIncident:              {},
	KindInternalAudit:         {},
	KindManagementReview:      {},
	KindISMSContext:           {},
	KindISMSObjective:         {},
	KindTraining:              {},
	KindBusinessProcess:       {},
	KindAuditChecklist:        {},
	KindComplianceRequirement: {},
	KindComplianceFramework:   {},
	KindComplianceMapping:     {},
	KindRiskTreatmentPlan:     {},
	KindDocument:              {},
	KindUser:                  {},
	KindRole:                  {},
}

// baseIgnoredFields are excluded from diff computation for every kind.
var baseIgnoredFields = map[string]struct{}{
	"updated_at": {},
}

// kindIgnoredFields lists additional per-kind fields whose churn carries no
// audit value.
var kindIgnoredFields = map[Kind]map[string]struct{}{
	KindUser: {
		"last_login_at": {},
	},
}

// IsAuditable reports whether mutations of the given kind produce audit
// records. Audit log entries themselves are never auditable, which is what
// prevents the capture pipeline from recursing into its own writes.
func IsAuditable(kind Kind) bool {
	_, ok := auditableKinds[kind]
	return ok
}

// IsIgnoredField reports whether the field is excluded from diff computation
// for the given kind.
func IsIgnoredField(kind Kind, field string) bool {
	if _, ok := baseIgnoredFields[field]; ok {
		return true
	}
	if extra, ok := kindIgnoredFields[kind]; ok {
		_, ignored := extra[field]
		return ignored
	}
	return false
}
