package model

// AgentResponse is the contract every handler returns.
//
// Invariants: Success=false implies Error is populated; NextHandler
// is only honored when Success=true.
type AgentResponse struct {
	Success     bool                   `json:"success"`
	Output      string                 `json:"output"`
	NextHandler string                 `json:"next_handler,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// ErrorMessage returns the response error, or a stable placeholder when a
// handler reported failure without one.
func (r *AgentResponse) ErrorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return "handler failed without error message"
}
