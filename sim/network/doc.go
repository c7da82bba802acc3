// Package network is the simulated link layer: a full mesh of directed links
// between hosts, the Network actor that delivers frames in virtual time
// order, and the per-server Transport multiplexing sockets over links.
//
// Frames on a link are delivered in nondecreasing delivery-time order; a
// paused link holds its frames until it is resumed.
package network
