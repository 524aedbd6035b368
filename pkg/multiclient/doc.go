// Package multiclient is an external, freely-rebuildable collaborator
// layered on top of the single-identity core: an LRU cache of running
// *node.Node handles, evicting the least-recently-used identity's Node
// (closing it) once more than Config.MultiClientMax identities have been
// loaded in this process.
package multiclient
