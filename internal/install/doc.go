// Package install holds the recipes that fetch, build and install LLVM.
//
// A recipe pulls source archives through the retrieval pipeline, drives
// cmake through a Builder and records the install prefix in the cache's
// shell file, e.g. LLVM_SYS_170_PREFIX for llvm 17. Each phase gets its own
// progress row.
//
// Known recipes:
//
//	llvm 16  16.0.1  split llvm/cmake/third-party .tar.xz sources
//	llvm 17  17.0.6  monorepo tag archive (.tar.gz)
//	llvm 18  18.1.2  monorepo tag archive (.tar.gz)
//
// Generators whose name contains "Visual Studio" are multi-config: the build
// passes --config Release and an explicit job count instead of selecting
// Ninja.
package install
