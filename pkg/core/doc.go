// Package core is the orchestrator: the only package a front end calls to
// install, update, uninstall or replace kitman itself.
//
// # Steps
//
// An install runs a fixed sequence of steps. Fatal steps abort the
// operation; best-effort steps log, report an update-message, mark the
// tool failed and carry on:
//
//  1. setup (fatal): install tree, manifest copy, manager binary and links
//  2. environment (fatal): variables and PATH through the Configurator
//  3. package registry (best effort): the cargo registry source
//  4. tools that do not need the toolchain (best effort, per tool)
//  5. toolchain (fatal for the toolchain only)
//  6. tools that need the toolchain (best effort, per tool)
//  7. final fingerprint write (fatal)
//
// Uninstall runs the same machinery backwards. Nothing is rolled back: the
// fingerprint is written after every tool or toolchain mutation, so it
// always describes what is actually on disk and a later run can resume.
//
// # Concurrency
//
// Each operation holds the advisory lock next to the fingerprint for its
// whole duration. A second process fails fast with ErrStateLocked.
package core
