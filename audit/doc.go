// Package audit implements the demo reporting side channel.
//
// Participants may post their raw private value (/report-insecure) and
// their masked value together with the masks they generated
// (/report-secure). The two listings, /big-brother and /secure-view, show
// side by side what an eavesdropper learns with and without masking.
//
// Raw values posted here are not protected in any way. The channel is
// disabled unless a participant is configured with an audit URL, and the
// protocol never depends on it.
package audit
