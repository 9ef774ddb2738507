package orchestrator

import "github.com/launchdeck/launchdeck/internal/progress"

// progressPayload renders a progress.Event as the wire shape spec §6 calls
// "stage-progress frames mirroring §4.5".
func progressPayload(evt progress.Event) map[string]any {
	return map[string]any{
		"deployment_id": evt.DeploymentID,
		"stage":         string(evt.Stage),
		"state":         string(evt.State),
		"message":       evt.Message,
		"details":       evt.Details,
		"sequence":      evt.Sequence,
		"timestamp":     evt.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// runWithProgress registers id with the Progress Bus, forwards every event
// published for it to the client as a "progress" frame in real time, runs
// fn synchronously, then closes the bus registration and waits for the
// forwarder to drain (spec §4.5 "routes to the Session Gateway").
// If no Bus or send function is installed (e.g. in tests), fn still runs.
func (o *Orchestrator) runWithProgress(id string, fn func()) {
	if o.Bus == nil || o.send == nil {
		fn()
		return
	}

	ch := o.Bus.Register(id)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			_ = o.send("progress", progressPayload(evt))
		}
	}()

	fn()

	o.Bus.Close(id)
	<-done
}
