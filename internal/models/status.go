package models

// Status is the workflow state shared by both request families.
type Status string

const (
	StatusRequested       Status = "requested"
	StatusApproved        Status = "approved"
	StatusDeclined        Status = "declined"
	StatusOnTest          Status = "on-test"
	StatusReadyCollect    Status = "ready-collect"
	StatusReportDelivered Status = "report-delivered"
)

// statusOrder lists statuses in the order they appear in choice lists.
var statusOrder = []Status{
	StatusRequested,
	StatusApproved,
	StatusDeclined,
	StatusOnTest,
	StatusReadyCollect,
	StatusReportDelivered,
}

var statusLabels = map[Status]string{
	StatusRequested:       "Requested",
	StatusApproved:        "Approved",
	StatusDeclined:        "Declined",
	StatusOnTest:          "On-Test",
	StatusReadyCollect:    "Ready To Collect",
	StatusReportDelivered: "Report Delivered",
}

// Valid reports whether s is a member of the status enum.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human readable label, or the raw value for unknown statuses.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsDelivered returns true for the terminal status.
func (s Status) IsDelivered() bool {
	return s == StatusReportDelivered
}

// ParseStatus converts a raw form value into a Status.
func ParseStatus(v string) (Status, bool) {
	s := Status(v)
	return s, s.Valid()
}

// StatusChoice is a value/label pair for select inputs.
type StatusChoice struct {
	Value Status `json:"value"`
	Label string `json:"label"`
}

// StatusChoices returns every status with its label, in workflow order.
func StatusChoices() []StatusChoice {
	out := make([]StatusChoice, 0, len(statusOrder))
	for _, s := range statusOrder {
		out = append(out, StatusChoice{Value: s, Label: s.Label()})
	}
	return out
}

// Family identifies one of the two request entity families.
type Family string

const (
	FamilyLab         Family = "lab"
	FamilyConsultancy Family = "consultancy"
)
