// Package discovery finds INDI servers on the local network via mDNS.
//
// indiserver installations commonly announce themselves as
// _indi._tcp via avahi. Browse watches for those announcements and
// reports servers as they appear and disappear; Advertiser announces a
// server, for gateways that expose one.
//
// Discovery is best-effort: servers without an mDNS announcement are
// reached by address through connection.Connect directly.
package discovery
