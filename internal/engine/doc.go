// Package engine is the audio engine behind the bridge: it decodes sound
// files, mixes sound effects and looping music on one bus, and feeds the
// mixed signal to a platform player as 16-bit PCM.
//
// Mixing and decoding are done with beep. Volumes are expressed on the
// 0..MaxVolume scale and applied as a linear gain.
package engine
