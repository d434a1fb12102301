package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RunOptions is the set of per-run parameters an operator submits when
// queuing a benchmark task. Validated before the task ever reaches
// internal/queue, so a malformed request never occupies a queue slot.
type RunOptions struct {
	DatasetID        int64   `validate:"required"`
	ModelName        string  `validate:"required"`
	BatchSize        int     `validate:"min=1,max=64"`
	MaxAttempts      int     `validate:"min=1,max=5"`
	IncludeRationale bool
	SystemPrompt     string
	ScaleMode        string `validate:"oneof=in rev dual"`
	DualFraction     float64 `validate:"min=0,max=1"`
	MaxNewTokens     int     `validate:"min=1"`
	LLMBackend       string  `validate:"oneof=vllm fake"`
	VLLMBaseURL      string
	VLLMAPIKey       string
	SkipCompleted    bool
	AttrGenerationRunID *int64
	GatewayCap       int
}

// Validate checks struct-tag constraints and the cross-field rule that
// max_new_tokens may not exceed the gateway's configured cap.
func (o RunOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid run options: %w", describeValidationError(err))
	}
	if o.GatewayCap > 0 && o.MaxNewTokens > o.GatewayCap {
		return fmt.Errorf("invalid run options: max_new_tokens %d exceeds gateway cap %d", o.MaxNewTokens, o.GatewayCap)
	}
	return nil
}

func describeValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var messages []string
	for _, fe := range verrs {
		messages = append(messages, fmt.Sprintf("%s failed %s", toSnakeCase(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
