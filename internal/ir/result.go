package ir

// Result is what a reconciler hands back for one event: the identity token
// and the output attributes other resources may reference.
type Result struct {
	PhysicalResourceID string            `json:"PhysicalResourceId"`
	Data               map[string]string `json:"Data"`
}

// Echo returns the result for intents that keep the prior identity and
// publish no outputs.
func Echo(ev *Event) Result {
	return Result{
		PhysicalResourceID: ev.PriorIdentity,
		Data:               map[string]string{},
	}
}
