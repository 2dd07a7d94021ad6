// Package logging builds the zap logger used by llvmgr.
//
// Stderr belongs to the progress block, so logs go to a rotating file by
// default. Verbose mode also copies them to stderr, at debug level.
package logging
