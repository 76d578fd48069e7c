// Package wsscan classifies single memory regions of a process working set
// and reports the ones that look like injected code. It provides:
//
// # Executability
//
// [IsExecutable] reads the current and the initial protection of a region.
// Image sections are executable when either protection carries a section-map
// execute flag; any region is executable when either carries a page-execute
// flag. With [Config].ScanData set, readable pages of processes running
// without DEP are considered too ([IsPotentiallyExecutable]).
//
// # Legitimacy
//
// [CheckLegitimacy] drops executable regions that are ordinary: image
// sections backed by a mapped file name and real file mappings. An image
// section without a mapped file name is kept and flagged as a doppelganging
// candidate.
//
// # Artefact Inspection
//
// [Scanner.ScanExecutableArea] loads the region content and runs a
// [PEScanner] over it. A PE match wins outright. Otherwise, when
// [Config].DetectShellcode is set, a [CodeDetector] decides whether the bytes
// look like code; a positive match yields a shellcode report spanning the
// whole region.
//
// The default detectors are [HeaderScanner], which recognizes PE headers
// (including images whose DOS header was wiped), and [PatternDetector],
// which disassembles the bytes and merges function prologues with call and
// jump targets into function candidates ([DetectFunctions]). A weak prologue
// counts once a branch lands on it.
//
// # Orchestration
//
// [Scanner.Classify] runs the stages in order and returns a tagged [Outcome]
// naming the stage and reason a region was dropped. [Scanner.ScanRemote]
// returns only the report, nil being the normal benign result. Unreadable
// metadata or content is never an error: the region is simply not reported.
//
// Regions are supplied through the [Region] interface. [PageRegion] builds
// one from a [MemoryReader]; package procmem provides a Linux source.
package wsscan
