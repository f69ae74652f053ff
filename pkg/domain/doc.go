/*
Package domain contains the core models of the Parlance dialogue engine.

It defines the hierarchical state graph (Nodes, Transitions, Definitions), the
wire vocabulary exchanged with the speech collaborator (Commands and Events),
the per-conversation Session Context, and the Snapshots exposed to observers.
The package is pure: no I/O, no goroutines, no persistence.

# Key Entities

  - Node: a named state. Atomic, compound (nested initial child), history
    (resume last visited child) or final.
  - Transition: an ordered, guarded edge keyed by event type. The first guard
    that holds wins.
  - Context: the slot-filling store owned by a single running machine.
  - RecognitionResult: the immutable outcome of one listen turn.
  - Snapshot: a read-only view of the active configuration and context.
*/
package domain
