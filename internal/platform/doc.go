// Package platform owns the process-wide audio output device.
//
// A Subsystem is initialized once before anything plays and quit once at
// the end. Production builds drive the device through oto/v3; tests and CI
// machines use MockSubsystem, which exposes the PCM stream instead of
// sending it to hardware.
package platform
