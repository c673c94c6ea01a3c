// Package editor is the host editor surface the engine drives.
//
// The engine applies remote edits with ApplyEdit and learns about local typing
// through ChangeEvents. A real host editor reports every buffer change,
// including the ones the engine applied itself; both implementations here do
// the same, which is what the engine's echo suppression relies on.
package editor
