package model

type DeployRequest struct {
	AppName              string `json:"appName" binding:"required"`
	Cartridges           string `json:"cartridges" binding:"required"`
	Domain               string `json:"domain"`
	GearProfile          string `json:"gearProfile"`
	DeploymentPath       string `json:"deploymentPath" binding:"required"`
	EnvironmentVariables string `json:"environmentVariables"`
	Mode                 string `json:"mode" binding:"omitempty,oneof=ARCHIVE BINARY GIT archive binary git"`
	ControlDir           string `json:"controlDir"`
	CommitMessage        string `json:"commitMessage"`
	BuildID              string `json:"buildId"`
	AutoScale            bool   `json:"autoScale"`
	EnableJava7          bool   `json:"enableJava7"`
	EnableJPDA           bool   `json:"enableJpda"`
	// Workspace anchors a relative DeploymentPath or ControlDir, normally
	// the CI job's workspace.
	Workspace string `json:"workspace"`
}

type ResolveRequest struct {
	DeploymentPath string `json:"deploymentPath" binding:"required"`
	Mode           string `json:"mode"`
	BaseDir        string `json:"baseDir"`
}

type SSHCheckRequest struct {
	AppName string `json:"appName" binding:"required"`
	Domain  string `json:"domain"`
}

type BatchSSHCheckRequest struct {
	Applications []SSHCheckRequest `json:"applications" binding:"required,dive"`
}
