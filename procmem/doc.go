// Package procmem supplies wsscan regions for live Linux processes.
//
// Mappings are read from /proc/<pid>/maps and translated to the protection
// and mapping model of package wsscan:
//
//   - anonymous, heap and stack mappings are private memory;
//   - file-backed mappings are mapped memory, real unless the file was
//     deleted or is a memfd object;
//   - kernel-provided code pages ([vdso], [vsyscall]) are named images.
//
// Content is read with process_vm_readv, falling back to /proc/<pid>/mem.
// Initial protection is not observable on Linux and mirrors the current one.
package procmem
