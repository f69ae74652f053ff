/*
Package parlance is a hierarchical dialogue state machine for spoken,
turn-based conversations with speech recognition and synthesis services.

A flow is a tree of states (atomic, compound, history and final) connected by
guarded transitions. Entering a state may ask the speech collaborator to
prepare audio, speak an utterance or listen for one; the collaborator answers
with events (SPEAK_COMPLETE, RECOGNISED, ASR_NOINPUT, ...) that drive the
machine. The conversation's Session Context (slots, flags, counters and the
last recognition) is owned by the machine and changed only by transition
updates.

# Concept

The engine never performs I/O itself. The host (CLI, HTTP server, websocket
bridge) plugs in a ports.Collaborator that carries commands to the speech
services, and sends their events back with Dialogue.Send. Snapshots of the
active configuration are published after every completed step for UIs.

# Usage

Define a flow with the dsl package (or load a YAML flow with Load), then
spawn one machine per conversation:

	res := grammar.New()
	b := dsl.New("greeting")
	b.Question("ask", "Shall we begin?").
		On(domain.EventRecognised, "bye", dsl.When(dsl.Affirmative(res))).
		On(domain.EventRecognised, "ask")
	b.Say("bye", "Great, see you!").Then("end")
	b.Final("end")

	eng, err := parlance.New(b.MustBuild(), parlance.WithCollaborator(speech))
	if err != nil {
		log.Fatal(err)
	}

	d, _ := eng.Spawn("")
	if err := d.Start(ctx); err != nil {
		log.Fatal(err)
	}
	// speech calls d.Send(ctx, domain.Event{Type: domain.EventSpeakComplete}) and so on.
*/
package parlance
