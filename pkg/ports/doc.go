/*
Package ports defines the driven ports (interfaces) of the Parlance dialogue engine.

These interfaces decouple the dialogue core from its collaborators, allowing
the engine to run against a terminal, a websocket speech host, or a test double.

# Key Interfaces

  - Collaborator: Performs PREPARE, SPEAK and LISTEN commands (speech/NLU service).
  - EventSink / Dialogue: Accept events and expose snapshots of a running conversation.
  - FlowLoader: Retrieves raw flow definitions (e.g., YAML files or memory).
  - TranscriptSink: Records conversation turns (memory, Redis, SQLite).
  - SessionLocker: Lets one replica at a time drive a session.
*/
package ports
