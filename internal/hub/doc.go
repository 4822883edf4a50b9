// Package hub owns every channel's lifecycle: which principals are attached,
// which connector serves the channel, the replay history and the transport
// mailboxes events are fanned out to.
//
// Each channel has its own mutex. The registry lock only guards the name to
// entry map, so channels never serialize each other. Network I/O (connector
// start and stop) always runs with no lock held; callers that meet a channel
// mid-transition wait on the entry's settled channel and retry.
//
// Lock order: registry, then channel, then session registry.
package hub
