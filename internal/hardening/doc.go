// Package hardening applies OpenBSD pledge/unveil sandboxing around
// the compression run.
//
// pledge(2) restricts syscalls. Promises cover file handling and
// subprocess spawning only; inet and dns are deliberately absent
// because the toolkit never touches the network. unveil(2) restricts
// the filesystem view to the tool binaries, the temp root, the output
// and incident directories (read-write-create), the license directory
// (read-only), and each input's directory (read-only). Children
// spawned through the command gate inherit the same view.
//
// On every other platform the package is a no-op.
package hardening

// Paths lists what the process may touch after Apply.
type Paths struct {
	TempRoot    string
	OutputDir   string
	LicenseDir  string
	IncidentDir string
	LogDir      string
	Inputs      []string
}
