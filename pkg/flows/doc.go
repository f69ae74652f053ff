// Package flows bundles ready-made dialogue definitions built with the dsl package.
//
// Appointment books a meeting slot by asking for a person, a day and a time.
// Intruder is a word game: the user hears four words and names the one that
// does not belong.
//
// Both flows start in a "prepare" state waiting for the speech collaborator to
// report ASRTTS_READY, then idle until the user clicks. A click in any resting
// state restarts the conversation.
package flows
