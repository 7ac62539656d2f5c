package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch {
	case subject == SubjectAgentExecuted:
		target = &AgentExecutedPayload{}
	case subject == SubjectHITLCreated, subject == SubjectHITLResolved:
		target = &HITLEventPayload{}
	case subject == SubjectPaymentUpdated:
		target = &PaymentUpdatedPayload{}
	case strings.HasSuffix(subject, DLQSuffix):
		// Dead letters keep whatever the original publisher sent.
		return nil
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
