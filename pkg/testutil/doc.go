// Package testutil holds fakes and fixtures shared by package tests.
//
// Key components:
//   - FakeRunner: records commands and plays back scripted output or effects
//   - MockRunner: testify mock for call-by-call expectations
//   - FakeHost: in-memory uninstall entries and executable links
//   - WriteTarGz, WriteZip, WriteFiles: payload fixtures on disk
//
// Fixtures live under t.TempDir(); nothing here touches the user's home.
package testutil
