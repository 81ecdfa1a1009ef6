// Package engine is the facade over the rigid-body engine the driver steps.
//
// Collision detection, integration and constraint solving are done by
// Chipmunk2D ([github.com/jakecoffman/cp]). This package adds the surface the
// driver and its callers rely on:
//
//   - [Factory]: registry of built-in shape and constraint types
//   - [System]: one engine instance with fixed capacity limits
//   - body interface: [System.CreateBody], [System.RemoveBody] and accessors
//   - [System.Update]: advances the space using scratch memory and a job system
//
// Object layers become Chipmunk shape filters. Static bodies live in the
// space's static index, so the NON_MOVING broad-phase tree is never tested
// against itself.
//
// # Thread Safety
//
// Body accessors lock one of [Settings.NumBodyMutexes] stripes; creation,
// removal and Update lock all of them.
package engine
