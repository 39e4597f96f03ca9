package command

import "regexp"

// Built-in allowlist. Each program accepts its pipeline invocation
// shape plus a bare --version probe; nothing else. The shapes mirror
// exactly what the compression pipeline emits, so a schema mismatch
// here is a bug in one place or the other, never a prompt to loosen
// the pattern.
//
// Program names are resolved through PATH by the spawn primitive;
// the allowlist deliberately holds bare names, not absolute paths.
var (
	gsArgs = regexp.MustCompile(`^--version$` +
		`|^-q -dNOPAUSE -dBATCH -dSAFER -sDEVICE=pdfwrite` +
		` -dCompatibilityLevel=1\.[47] -dPDFSETTINGS=/(screen|ebook|printer|prepress)` +
		`( -dColorImageResolution=\d{2,4} -dGrayImageResolution=\d{2,4} -dMonoImageResolution=\d{2,4})?` +
		` -sOutputFile=\S+ \S+$`)

	qpdfArgs = regexp.MustCompile(`^--version$` +
		`|^(--linearize )?--object-streams=generate --compress-streams=y --recompress-flate \S+ \S+$`)

	convertArgs = regexp.MustCompile(`^--version$` +
		`|^-density \d{2,3} -quality \d{1,3} -compress jpeg \S+ \S+$`)

	fileArgs = regexp.MustCompile(`^--version$|^-b --mime-type \S+$`)

	// TODO: tighten to `^--version$|^-sb \S+$` once the size report no
	// longer accepts free-form du flags from older profiles.
	duArgs = regexp.MustCompile(`.*`)
)

// DefaultSpecs returns the built-in allowlist: the PDF engine, the
// structural rewriter, the image fallback, and the two filesystem
// probes. The table is constructed fresh per call; callers own their
// copy.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "gs", Args: gsArgs},
		{Name: "qpdf", Args: qpdfArgs},
		{Name: "convert", Args: convertArgs},
		{Name: "file", Args: fileArgs},
		{Name: "du", Args: duArgs},
	}
}
