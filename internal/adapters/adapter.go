// Package adapters observes prompt sources and emits normalised
// DetectedPrompt events. Each adapter implements the same capability set;
// dispatch is by the source's detection method, not a type hierarchy.
package adapters

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DevArk-AI/devark/pkg/models"
)

// Status is the externally visible adapter state.
type Status struct {
	IsReady         bool   `json:"isReady"`
	IsAvailable     bool   `json:"isAvailable"`
	IsWatching      bool   `json:"isWatching"`
	PromptsDetected int    `json:"promptsDetected"`
	LastError       string `json:"lastError,omitempty"`
	Info            string `json:"info,omitempty"`
}

// PromptCallback receives detected prompts.
type PromptCallback func(prompt models.DetectedPrompt)

// StatusCallback receives status transitions.
type StatusCallback func(status Status)

// Adapter is the capability set every prompt-source adapter implements.
type Adapter interface {
	Source() models.PromptSource
	Initialize() bool
	Start() error
	Stop()
	IsAvailable() bool
	Status() Status
	Dispose()
	OnPrompt(cb PromptCallback)
	OnStatusChange(cb StatusCallback)
}

// NewPromptID builds the namespaced globally-unique prompt ID:
// "<sourceId>-<ms>-<rand7>".
func NewPromptID(sourceID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%s-%d-%s", sourceID, time.Now().UnixMilli(), suffix)
}
