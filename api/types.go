package api

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	// Error is a human-readable explanation of why the request failed.
	Error string `json:"error" example:"scanning \"localhost\" is not allowed"`
	// Kind names the error class for validation and scan failures.
	Kind string `json:"kind,omitempty" enums:"InvalidHost,ForbiddenTarget,MissingPorts,InvalidPort,ScanInternalError" example:"ForbiddenTarget"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status        string `json:"status" example:"ok"`
	Strategy      string `json:"strategy" enums:"connect,nmap" example:"connect"`
	UptimeSeconds int64  `json:"uptimeSeconds" example:"3600"`
	ActiveScans   int    `json:"activeScans" example:"1"`
	MaxScans      int    `json:"maxScans" example:"4"`
}
