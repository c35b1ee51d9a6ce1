// Package preflight provides readiness checks for the directories, binaries
// and collaborator services mediafactory depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failed check so an
//     operator sees a missing key before the first job fails on it.
//   - The CLI "mediafactory health" command prints the same results plus the
//     binary dependency table from CheckSystemDeps.
//
// Checks for optional collaborators report "Disabled" or the offline fallback
// instead of failing.
package preflight
