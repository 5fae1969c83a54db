package model

// DeployResult is the outcome of one deployment attempt.
type DeployResult struct {
	Success        bool     `json:"success"`
	ApplicationURL string   `json:"url,omitempty"`
	Steps          []string `json:"steps"`
	Error          string   `json:"error,omitempty"`
}

type DeployResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId,omitempty"`
	Message string `json:"message,omitempty"`
}

type ProgressResponse struct {
	Success  bool     `json:"success"`
	Progress float64  `json:"progress"`
	Status   string   `json:"status"`
	Logs     []string `json:"logs"`
	URL      string   `json:"url,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type ResolveResponse struct {
	Success   bool     `json:"success"`
	Artifacts []string `json:"artifacts,omitempty"`
	Message   string   `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type SSHCheckResponse struct {
	AppName  string   `json:"appName"`
	Endpoint string   `json:"endpoint,omitempty"`
	Success  bool     `json:"success"`
	Details  []string `json:"details"`
}
