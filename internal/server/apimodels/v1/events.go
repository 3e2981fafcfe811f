package v1

type POSTEventRequest struct {
	// Kind is "exception" or "log".
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Stack    string `json:"stack"`
	Editor   bool   `json:"editor"`
	// Application and Version default to the reporting configuration.
	Application string `json:"application"`
	Version     string `json:"version"`
}

type POSTEventResponse struct {
	Submit      bool     `json:"submit"`
	Reason      string   `json:"reason"`
	ReportID    string   `json:"report_id,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}
