package incident

import "time"

// Incident is one service ticket for one piece of equipment.
type Incident struct {
	ID                 string
	Code               string
	CustomerID         string
	ProductID          *string
	ProblemDescription string
	EntryChannel       EntryChannel
	WarrantyCoverage   bool
	Status             Status
	OriginIncidentID   *string
	DeliveryAddressID  *string
	DeliveredAt        *time.Time

	// ObservationLog is the legacy free-text log; new entries are appended, never rewritten.
	ObservationLog string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DiagnosticState string

const (
	DiagnosticDraft DiagnosticState = "draft"
	DiagnosticFinal DiagnosticState = "final"
)

// SelectedPart is one line of a technician's part selection.
type SelectedPart struct {
	Code        string `json:"code"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`

	// OriginalCode keeps the requested code when Code was replaced by its parent substitute.
	OriginalCode string `json:"original_code,omitempty"`
}

type Diagnostic struct {
	ID               string
	IncidentID       string
	TechnicianID     string
	Version          int
	State            DiagnosticState
	Superseded       bool
	Faults           []string
	Causes           []string
	Parts            []SelectedPart
	RequiresParts    bool
	Recommendations  string
	Resolution       Resolution
	ResolutionNote   string
	PhotoRefs        []string
	EstimatedMinutes int
	EstimatedCost    float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type PartsRequestStatus string

const (
	PartsPending   PartsRequestStatus = "pending"
	PartsFulfilled PartsRequestStatus = "fulfilled"
	PartsRejected  PartsRequestStatus = "rejected"
)

type PartsRequest struct {
	ID          string
	IncidentID  string
	RequesterID string
	Items       []SelectedPart
	Note        string
	Status      PartsRequestStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	ResolvedBy  string
}

type ChangeKind string

const (
	ChangeKindWarrantyExchange ChangeKind = "warranty_exchange"
	ChangeKindTradeIn          ChangeKind = "trade_in"
	ChangeKindCreditNote       ChangeKind = "credit_note"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type ChangeRequest struct {
	ID             string
	IncidentID     string
	DiagnosticID   string
	Kind           ChangeKind
	RequesterID    string
	Justification  string
	EvidenceRefs   []string
	Status         ApprovalStatus
	ResolvedBy     string
	ResolutionNote string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

type RejectionReason string

const (
	ReasonOutOfWindow     RejectionReason = "out_of_window"
	ReasonMisuse          RejectionReason = "misuse"
	ReasonDifferentFault  RejectionReason = "different_fault"
	ReasonNoPriorIncident RejectionReason = "no_prior_incident"
)

type RecurrenceVerification struct {
	ID                  string
	IncidentID          string
	PriorIncidentID     *string
	IsRecurrence        bool
	QualifiesForReentry *bool
	RejectionReason     *RejectionReason
	Justification       string
	DaysSinceRepair     int
	VerifierID          string
	VerifiedAt          time.Time
}

// Approved reports whether the verification granted a free re-entry.
func (v RecurrenceVerification) Approved() bool {
	return v.IsRecurrence && v.QualifiesForReentry != nil && *v.QualifiesForReentry
}

type PhotoKind string

const (
	PhotoIntake     PhotoKind = "intake"
	PhotoDiagnostic PhotoKind = "diagnostic"
	PhotoEvidence   PhotoKind = "evidence"
	PhotoDelivery   PhotoKind = "delivery"
)

type Photo struct {
	ID         string
	IncidentID string
	Kind       PhotoKind
	Ref        string
	UploadedBy string
	TakenAt    time.Time
}

type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ChangeLogEntry is one structured audit record of a write to an incident or its children.
type ChangeLogEntry struct {
	ID            uint64
	IncidentID    string
	Action        ChangeAction
	Table         string
	ChangedFields []string
	Before        map[string]string
	After         map[string]string
	Actor         string
	CreatedAt     time.Time
}
