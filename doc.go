// Package shadercore provides the core of a guest-shader recompiler and
// host-pipeline cache for a Tegra-class (Maxwell/Pascal) GPU targeting a
// Vulkan 1.1+ host.
//
// # Overview
//
// The package ingests raw guest shader machine code, reconstructs its
// control flow into a structured AST, lowers it into a typed IR, emits
// SPIR-V for the host, and assembles the resulting modules into cached
// host pipelines:
//
//	decode/      instruction decoding
//	flow/        control-flow reconstruction (block graph, SSY/PBK/BRX)
//	ast/         goto-to-structured-control-flow transform
//	ir/          typed shader IR, lowering, resource tracking
//	emit/        SPIR-V code generation
//	pipeline/    pipeline cache (build, dedupe, persist)
//	descriptor/  descriptor-set layout synthesis
//	worker/      bounded worker pool and GPU/CPU fences
//
// # Scope
//
// Out of scope: the host graphics API binding layer, texture/buffer
// caches, the front-end memory manager, on-disk file I/O primitives, and
// the CLI shell. Those are external collaborators; this module defines
// only the interfaces it needs from them.
//
// # Logging
//
// shadercore logs nothing by default. Call [SetLogger] to attach a
// *slog.Logger; all sub-packages route through it.
package shadercore
