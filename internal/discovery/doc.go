// Package discovery advertises the running server over mDNS.
//
// While serving, the daemon registers a "_websock._tcp" service in the
// local domain with the configured instance name, so LAN clients and
// the monitor can locate the endpoint without configuration. TXT
// records carry the build version and the start time.
//
// Advertisement is best-effort: a network without multicast support
// degrades to no announcement, never to a serving failure.
package discovery
