// internal/workers/delivery/notify-evaluator/models.go
package notifyevaluator

import "app-deployer/internal/models"

type Input struct {
	URL     string                     `json:"url"`
	Payload models.NotificationPayload `json:"payload"`
}

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Output describes the one definitive response. Rejected responses are
// still delivered; the evaluator decided.
type Output struct {
	Attempts   int    `json:"attempts"`
	StatusCode int    `json:"statusCode"`
	Outcome    string `json:"outcome"`
}
