// Package collaborators defines the typed contracts the Pipeline Engine
// holds against the external systems the core never implements itself: Git
// hosting, the managed build service, and the managed serverless platform
// (spec §1 "deliberately out of scope", §6 "External Interfaces"). Per
// spec §6 these are treated by their own REST surfaces, not a bundled
// vendor SDK — every concrete client here is a thin, typed HTTP wrapper.
package collaborators

import (
	"context"
	"io"
)

// CloneProgress is emitted incrementally while a GitClient clones a
// repository.
type CloneProgress struct {
	BytesReceived int64
	FilesWritten  int
}

// GitClient is the capability set spec §6 requires of the Git collaborator.
type GitClient interface {
	Clone(ctx context.Context, repoURL, branch, targetDir string, progress func(CloneProgress)) error
	ValidateCredential(ctx context.Context) error
	ListRepositories(ctx context.Context) ([]RepositoryRef, error)
}

// RepositoryRef is one repository returned by ListRepositories.
type RepositoryRef struct {
	Name          string
	URL           string
	DefaultBranch string
	Private       bool
}

// BuildOperation is a handle to a submitted build, polled until done.
type BuildOperation struct {
	ID   string
	Done bool
	// ImageTag is populated once Done is true and the build succeeded.
	ImageTag string
	Error    string
}

// CloudBuildClient is the capability set spec §6 requires of the managed
// build service collaborator.
type CloudBuildClient interface {
	EnsureSourceBucket(ctx context.Context) error
	UploadBlob(ctx context.Context, objectName string, data io.Reader) error
	SubmitBuild(ctx context.Context, sourceObject, imageTag string) (*BuildOperation, error)
	PollOperation(ctx context.Context, operationID string) (*BuildOperation, error)
	FetchLogs(ctx context.Context, operationID string) ([]string, error)
}

// ServiceSpec is what ServerlessClient needs to create or update a managed
// service (spec §4.4 stage 6).
type ServiceSpec struct {
	Name      string
	ImageTag  string
	Port      int
	Resources ResourceConfig
	EnvVars   map[string]string
	Labels    map[string]string
}

// ResourceConfig mirrors the spec §3 data model entry of the same name.
type ResourceConfig struct {
	CPU          string
	Memory       string
	Concurrency  int
	MinInstances int
	MaxInstances int
}

// ServiceInfo is what GetService/CreateService/UpdateService return.
type ServiceInfo struct {
	Name   string
	URL    string
	Exists bool
}

// ServerlessClient is the capability set spec §6 requires of the managed
// serverless platform collaborator.
type ServerlessClient interface {
	GetService(ctx context.Context, name string) (*ServiceInfo, error)
	CreateService(ctx context.Context, spec ServiceSpec) (*ServiceInfo, error)
	UpdateService(ctx context.Context, spec ServiceSpec) (*ServiceInfo, error)
	FetchLogs(ctx context.Context, name string, limit int) ([]string, error)
}
