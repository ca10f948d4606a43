// Package live orchestrates one mounted mock-interview session.
//
// A Session fuses four independently asynchronous components into one
// conversation with a single, idempotent termination:
//
//   - transcript.Store: ordered turns, submit then authoritative refetch
//   - synth.Queue: interviewer speech, sentence by sentence, cancellable
//   - capture.Controller: voice answers plus a per-frame voice-activity signal
//   - video.Controller: the candidate's camera feed
//
// # State Machine
//
//	INITIALIZING → ACTIVE → ENDING → ENDED
//	                  ↑        │
//	                  └────────┘ (an end call failed; retry allowed)
//
// The end sequence is entered through an EndGuard, so an explicit End and the
// automatic end-of-conversation path can race without running it twice. The
// automatic path waits until speech has finished and then a grace delay; with
// speech disabled it fires immediately.
//
// # End Sequence
//
// Speech is cancelled (user path only), the camera and audio capture are
// released, and then review, summary and elapsed-time persistence run in that
// order. Any failure stops the sequence, notifies the user and returns to
// ACTIVE.
//
// Close is the teardown path: devices and speech are released but no backend
// end call is made.
package live
