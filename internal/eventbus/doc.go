// Package eventbus is the in-process publish/subscribe dispatcher used for
// notifications between subsystems.
//
// Event names are dot-namespaced strings such as "player.move" or
// "ui.loading.progress". A listener subscribes either to an exact name or to
// a wildcard pattern "<namespace>.*". Emitting "a.b.c" first reaches the
// listeners of "a.b.c" with the payload, then the listeners of "a.*" and
// "a.b.*", in that order, with the payload and the full event name. The
// pattern "a.b.c.*" is never consulted for "a.b.c".
//
// Delivery is synchronous. Each emission works on a snapshot of the matched
// listener sets taken when it starts: listeners added during the pass wait for
// the next emission, and listeners removed during the pass still receive the
// current one. A panicking listener is recovered and reported through the
// bus error hook; the remaining listeners are still called and Emit itself
// never fails.
package eventbus
