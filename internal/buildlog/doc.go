// Package buildlog bridges line-oriented output of external build tools into
// progress rows.
//
// Ninja and CMake prefix status lines with "[current/total]":
//
//	[179/3416] Building CXX object lib/Support/CMakeFiles/LLVMSupport.dir/APInt.cpp.o
//
// [ParseLine] extracts that pair and is pure. The state that keeps a bar
// steady across lines without a prefix ("Linking CXX executable bin/clang")
// lives in [Tracker], which remembers the last fraction that parsed.
package buildlog
