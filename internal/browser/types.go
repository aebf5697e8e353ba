// Package browser owns the instance/registry core: named browser
// automation sessions, their lifecycle, and session state transfer.
package browser

import (
	"fmt"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine"
)

const (
	CodeValidation            = "VALIDATION"
	CodeDuplicateName         = "DUPLICATE_NAME"
	CodeInstanceNotFound      = "INSTANCE_NOT_FOUND"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSiteNotFound          = "SITE_NOT_FOUND"
	CodeWorkflowNotRegistered = "WORKFLOW_NOT_REGISTERED"
	CodeNotLaunched           = "NOT_LAUNCHED"
	CodeNoPage                = "NO_PAGE"
	CodeEngineFailure         = "ENGINE_FAILURE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError. Shared by the workflow layer so every
// expected failure carries a stable code.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Status is the lifecycle state of an Instance. Transitions are
// one-directional (closed → launching → ready → closed) except that an
// errored instance may still be closed; ready and busy alternate while the
// instance serves operations.
type Status string

const (
	StatusLaunching Status = "launching"
	StatusReady     Status = "ready"
	StatusBusy      Status = "busy"
	StatusClosed    Status = "closed"
	StatusError     Status = "error"
)

// InstanceConfig describes one instance at creation time. Immutable once
// the instance exists.
type InstanceConfig struct {
	Name       string              `json:"name"`
	Proxy      *engine.ProxyConfig `json:"proxy,omitempty"`
	Headless   bool                `json:"headless,omitempty"`
	Viewport   *engine.Viewport    `json:"viewport,omitempty"`
	ProfileDir string              `json:"profile_dir,omitempty"`
}

// PageInfo is a snapshot of one open page.
type PageInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// InstanceInfo is a point-in-time snapshot of an instance for listings.
type InstanceInfo struct {
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Engine    string     `json:"engine"`
	Headless  bool       `json:"headless"`
	CreatedAt time.Time  `json:"created_at"`
	Pages     []PageInfo `json:"pages"`
	URL       string     `json:"url,omitempty"`
}
