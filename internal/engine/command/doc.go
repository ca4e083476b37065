// Package command defines the command envelope and validation entry points.
//
// Commands are requests to change scenario state. They are never persisted;
// only the events an accepted command produces are. A command may be rejected
// at any pipeline stage with no observable effect.
package command
