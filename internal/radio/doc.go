// Package radio owns the station radio boundary.
//
// Ownership boundary:
// - Controller contract consumed by the action catalog
// - numeric error codes carried back to the controller
// - simulated controller for development and tests
//
// Driver bring-up is not owned here; a hardware-backed Controller is supplied
// by the host build.
package radio
