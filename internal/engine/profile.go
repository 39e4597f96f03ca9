package engine

import (
	"fmt"
	"sort"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/license"
)

// Profile is one resolved quality setting for the PDF engine.
type Profile struct {
	Name     string
	GSPreset string
	DPI      int
	Custom   bool
}

// gsPresets are the only device settings ghostscript's pdfwrite
// accepts here. Custom profiles must name one of them.
var gsPresets = map[string]bool{
	"/screen":   true,
	"/ebook":    true,
	"/printer":  true,
	"/prepress": true,
}

// builtinProfiles returns the four stock profiles in quality order.
func builtinProfiles() []Profile {
	return []Profile{
		{Name: config.ProfileScreen, GSPreset: "/screen", DPI: 72},
		{Name: config.ProfileEbook, GSPreset: "/ebook", DPI: 150},
		{Name: config.ProfilePrinter, GSPreset: "/printer", DPI: 300},
		{Name: config.ProfilePrepress, GSPreset: "/prepress", DPI: 300},
	}
}

// customProfile checks a configured profile against what the engine
// invocation shape accepts before it can ever reach an argv.
func customProfile(name string, ps config.ProfileSettings) (Profile, error) {
	if !gsPresets[ps.Preset] {
		return Profile{}, fmt.Errorf("profile %s: %q is not a ghostscript preset", name, ps.Preset)
	}
	if ps.DPI != 0 && (ps.DPI < 10 || ps.DPI > 2400) {
		return Profile{}, fmt.Errorf("profile %s: dpi %d out of range", name, ps.DPI)
	}
	return Profile{Name: name, GSPreset: ps.Preset, DPI: ps.DPI, Custom: true}, nil
}

// gsArgs builds the ghostscript argv for this profile. The shape must
// stay in lockstep with the command allowlist schema.
func (p Profile) gsArgs(in, out string) []string {
	level := "1.4"
	if p.GSPreset == "/printer" || p.GSPreset == "/prepress" {
		level = "1.7"
	}
	args := []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=" + level,
		"-dPDFSETTINGS=" + p.GSPreset,
	}
	if p.DPI > 0 {
		args = append(args,
			fmt.Sprintf("-dColorImageResolution=%d", p.DPI),
			fmt.Sprintf("-dGrayImageResolution=%d", p.DPI),
			fmt.Sprintf("-dMonoImageResolution=%d", p.DPI),
		)
	}
	return append(args, "-sOutputFile="+out, in)
}

// Profiles returns everything the current configuration offers:
// built-ins first, then configured customs sorted by name. Customs
// that would not survive the allowlist are skipped with a warning.
func (c *Compressor) Profiles() []Profile {
	profiles := builtinProfiles()
	names := make([]string, 0, len(c.cfg.Profiles))
	for name := range c.cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := customProfile(name, c.cfg.Profiles[name])
		if err != nil {
			c.logger.Warn("skipping misconfigured profile", "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// resolveProfile maps a profile name to a Profile. Built-ins resolve
// for everyone; configured customs are an enterprise feature.
func (c *Compressor) resolveProfile(name string) (Profile, error) {
	for _, p := range builtinProfiles() {
		if p.Name == name {
			return p, nil
		}
	}
	ps, ok := c.cfg.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	if !c.features.FeatureEnabled(license.FeatureCustomProfiles) {
		return Profile{}, fmt.Errorf("%w: profile %s needs %s", ErrFeatureLocked, name, license.FeatureCustomProfiles)
	}
	return customProfile(name, ps)
}
