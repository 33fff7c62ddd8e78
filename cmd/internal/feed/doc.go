// Package feed pushes newly inserted message rows to connected WebSocket
// clients, one subscription per room. The feed is one-way: clients never send
// application frames, they only listen.
package feed
