// Package archive turns a compressed tarball into files on disk.
//
// Decompression and extraction are separate steps so each can drive its own
// progress row:
//
//	data, err := archive.DecompressFile(decompressTask, "llvm-17.0.6.tar.gz", 0)
//	if err != nil {
//	    return err
//	}
//	err = archive.Extract(untarTask, data, dest)
//
// # Decompression
//
// The whole decompressed payload is held in memory. The size of the output
// is not known up front, so progress is measured against the compressed
// input: compressed bytes consumed divided by the compressed size.
//
// # Extraction
//
// Extract makes two passes over the same bytes, the first only to count
// entries. Only regular files are written; directories come into being as
// parents of files, and symlinks, hard links and device nodes are dropped.
// The first path component of every entry is removed, so an archive rooted
// at "llvm-project-17.0.6/" unpacks straight into dest. Entries that would
// resolve outside dest fail with ErrUnsafePath.
package archive
