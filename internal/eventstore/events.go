package eventstore

// Journal event types. The pipeline bus records every published event
// under its event name; these constants are the journal's vocabulary
// for querying.
const (
	EventCheckoutRequested = "CheckoutRequested"
	EventBuildRequested    = "BuildRequested"
	EventPublishRequested  = "PublishRequested"
	EventPublishSkipped    = "PublishSkipped"
	EventRunCompleted      = "RunCompleted"
)
