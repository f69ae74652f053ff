/*
Package session manages the live dialogues of a process.

A Manager creates dialogues through a Factory, keeps them by session ID and
serializes operations on each session with a per-session mutex, optionally
backed by a distributed lock so that only one replica drives a conversation.
*/
package session
