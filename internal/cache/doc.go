// Package cache manages the llvmgr cache directory.
//
// Everything llvmgr writes lives under one root, ~/.cache/llvmgr unless
// configured otherwise: downloaded archives (named after the URL's last path
// segment), per-version source and build trees, the installed toolchains and
// shell.yaml, which records the environment variables installs want set.
//
//	c, err := cache.Open("")
//	src, err := c.Dir("17.0.6/src")
//	err = c.SetEnv("LLVM_SYS_170_PREFIX", c.Path("17.0.6"))
//
// The cache does no locking. Two installs sharing a root at the same time
// will corrupt each other.
package cache
